package runtime

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/compiler"
	"github.com/skinklang/skink/internal/lexer"
	"github.com/skinklang/skink/internal/object"
	"github.com/skinklang/skink/internal/parser"
)

// SourceExt is the file extension of Skink source modules.
const SourceExt = ".sk"

// ChunkStore caches compiled chunks between runs, keyed by the source
// file's identity. Implementations decide the storage.
type ChunkStore interface {
	Get(file string, mtime int64, format bytecode.Format) (*bytecode.Chunk, bool, error)
	Put(file string, mtime int64, format bytecode.Format, chunk *bytecode.Chunk) error
}

// Loader resolves import paths to source files, compiles them, executes
// them once and caches the resulting modules. The search path is plain
// mutable state: a guard suppressing imports swaps it out and restores it,
// and the loader does not defend against that.
type Loader struct {
	vm         *VM
	searchPath []string
	format     bytecode.Format
	cache      map[string]*object.Module
	loading    []string
	loadingSet map[string]struct{}
	chunks     ChunkStore
	logger     *slog.Logger
}

func NewLoader(format bytecode.Format) *Loader {
	return &Loader{
		searchPath: []string{"."},
		format:     format,
		cache:      make(map[string]*object.Module),
		loadingSet: make(map[string]struct{}),
		logger:     slog.New(slog.DiscardHandler),
	}
}

// AttachVM hands the loader the VM whose forks execute module chunks.
func (l *Loader) AttachVM(vm *VM) { l.vm = vm }

// SetLogger replaces the loader's logger (discard if nil).
func (l *Loader) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l.logger = logger
}

// SetChunkStore installs a compiled-chunk cache consulted before parsing.
func (l *Loader) SetChunkStore(cs ChunkStore) { l.chunks = cs }

func (l *Loader) Format() bytecode.Format { return l.format }

// SearchPath returns a copy of the current module roots.
func (l *Loader) SearchPath() []string {
	out := make([]string, len(l.searchPath))
	copy(out, l.searchPath)
	return out
}

// SetSearchPath replaces the module roots.
func (l *Loader) SetSearchPath(roots []string) {
	l.searchPath = make([]string, len(roots))
	copy(l.searchPath, roots)
}

// ImportModule returns the module bound to path, loading and executing its
// source on first use. The cache is consulted before the load stack and the
// load stack before the search path, so already-loaded modules import fine
// even while path resolution is suppressed, and a module met again during
// its own load reports a cycle rather than a missing file.
func (l *Loader) ImportModule(path string) (*object.Module, error) {
	if mod, ok := l.cache[path]; ok {
		return mod, nil
	}
	if _, busy := l.loadingSet[path]; busy {
		chain := make([]string, len(l.loading), len(l.loading)+1)
		copy(chain, l.loading)
		return nil, newImportCycle(path, append(chain, path))
	}
	file, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	chunk, err := l.loadChunk(path, file)
	if err != nil {
		return nil, err
	}
	if l.vm == nil {
		return nil, internalErrorf("loader has no attached vm")
	}

	l.loadingSet[path] = struct{}{}
	l.loading = append(l.loading, path)
	defer func() {
		delete(l.loadingSet, path)
		l.loading = l.loading[:len(l.loading)-1]
	}()

	mod := object.NewModule(path)
	if _, err := l.vm.Fork().RunModule(chunk, mod); err != nil {
		return nil, err
	}
	l.cache[path] = mod
	l.logger.Debug("module loaded", "path", path, "file", file)
	return mod, nil
}

// Loaded reports whether path is already in the module cache.
func (l *Loader) Loaded(path string) bool {
	_, ok := l.cache[path]
	return ok
}

func (l *Loader) resolve(path string) (string, error) {
	rel := filepath.FromSlash(path) + SourceExt
	for _, root := range l.searchPath {
		candidate := filepath.Join(root, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", newImportNotFound(path)
}

func (l *Loader) loadChunk(path, file string) (*bytecode.Chunk, error) {
	var mtime int64
	if info, err := os.Stat(file); err == nil {
		mtime = info.ModTime().UnixNano()
	}
	if l.chunks != nil {
		if chunk, ok, err := l.chunks.Get(file, mtime, l.format); err != nil {
			l.logger.Warn("chunk cache read failed", "file", file, "err", err)
		} else if ok {
			l.logger.Debug("chunk cache hit", "file", file)
			return chunk, nil
		}
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, newImportBadSource(path, err)
	}
	chunk, err := l.compileSource(path, string(src))
	if err != nil {
		return nil, err
	}
	if l.chunks != nil {
		if err := l.chunks.Put(file, mtime, l.format, chunk); err != nil {
			l.logger.Warn("chunk cache write failed", "file", file, "err", err)
		}
	}
	return chunk, nil
}

func (l *Loader) compileSource(path, src string) (*bytecode.Chunk, error) {
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, newImportBadSource(path, fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}
	chunk, err := compiler.New(l.format).Compile(prog, path)
	if err != nil {
		return nil, newImportBadSource(path, err)
	}
	return chunk, nil
}
