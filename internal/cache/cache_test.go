package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/compiler"
	"github.com/skinklang/skink/internal/lexer"
	"github.com/skinklang/skink/internal/parser"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DefaultPath(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func compileChunk(t *testing.T, name, input string) *bytecode.Chunk {
	t.Helper()
	p := parser.New(lexer.New(input))
	program := p.ParseProgram()
	require.Empty(t, p.Errors())
	chunk, err := compiler.New(bytecode.FormatCurrent).Compile(program, name)
	require.NoError(t, err)
	return chunk
}

func marshal(t *testing.T, chunk *bytecode.Chunk) []byte {
	t.Helper()
	data, err := bytecode.MarshalChunk(chunk)
	require.NoError(t, err)
	return data
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath(filepath.Join("home", "proj"))
	assert.Equal(t, filepath.Join("home", "proj", ".skink", "chunks.db"), got)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := DefaultPath(t.TempDir())
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
	assert.Equal(t, path, store.Path())
}

func TestGetMissesOnEmptyStore(t *testing.T) {
	store := setupStore(t)

	chunk, ok, err := store.Get("main.sk", 100, bytecode.FormatCurrent)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, chunk)
}

func TestPutGetRoundTrip(t *testing.T) {
	store := setupStore(t)
	chunk := compileChunk(t, "main", `
x = 1 + 2
fn double(n) {
    return n * 2
}
y = double(x)
`)

	require.NoError(t, store.Put("main.sk", 100, bytecode.FormatCurrent, chunk))

	got, ok, err := store.Get("main.sk", 100, bytecode.FormatCurrent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, marshal(t, chunk), marshal(t, got))
}

func TestGetMissesOnChangedMtime(t *testing.T) {
	store := setupStore(t)
	chunk := compileChunk(t, "main", "x = 1")

	require.NoError(t, store.Put("main.sk", 100, bytecode.FormatCurrent, chunk))

	_, ok, err := store.Get("main.sk", 200, bytecode.FormatCurrent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMissesOnDifferentFormat(t *testing.T) {
	store := setupStore(t)
	chunk := compileChunk(t, "main", "x = 1")

	require.NoError(t, store.Put("main.sk", 100, bytecode.FormatCurrent, chunk))

	_, ok, err := store.Get("main.sk", 100, bytecode.FormatLegacy)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutReplacesExistingEntry(t *testing.T) {
	store := setupStore(t)
	old := compileChunk(t, "main", "x = 1")
	fresh := compileChunk(t, "main", "x = 2")

	require.NoError(t, store.Put("main.sk", 100, bytecode.FormatCurrent, old))
	require.NoError(t, store.Put("main.sk", 200, bytecode.FormatCurrent, fresh))

	_, ok, err := store.Get("main.sk", 100, bytecode.FormatCurrent)
	require.NoError(t, err)
	assert.False(t, ok, "stale entry should be gone")

	got, ok, err := store.Get("main.sk", 200, bytecode.FormatCurrent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, marshal(t, fresh), marshal(t, got))

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEntriesListsChunks(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.Put("a.sk", 10, bytecode.FormatCurrent, compileChunk(t, "a", "x = 1")))
	require.NoError(t, store.Put("b.sk", 20, bytecode.FormatCurrent, compileChunk(t, "b", "y = 2")))

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	files := []string{entries[0].File, entries[1].File}
	assert.ElementsMatch(t, []string{"a.sk", "b.sk"}, files)
	for _, e := range entries {
		assert.Equal(t, store.Session(), e.Session)
		assert.Equal(t, bytecode.FormatCurrent, e.Format)
		assert.Greater(t, e.Size, int64(0))
		assert.False(t, e.Written.IsZero())
	}
}

func TestClearRemovesEverything(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.Put("a.sk", 10, bytecode.FormatCurrent, compileChunk(t, "a", "x = 1")))
	require.NoError(t, store.Put("b.sk", 20, bytecode.FormatCurrent, compileChunk(t, "b", "y = 2")))

	n, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessionDiffersAcrossOpens(t *testing.T) {
	path := DefaultPath(t.TempDir())

	first, err := Open(path)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Session())
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.Session(), second.Session())
}

func TestInMemoryStore(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	chunk := compileChunk(t, "main", "x = 1")
	require.NoError(t, store.Put("main.sk", 100, bytecode.FormatCurrent, chunk))

	_, ok, err := store.Get("main.sk", 100, bytecode.FormatCurrent)
	require.NoError(t, err)
	assert.True(t, ok)
}
