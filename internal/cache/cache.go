// Package cache persists compiled bytecode chunks between runs.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/runtime"
)

const (
	defaultDirName  = ".skink"
	defaultFileName = "chunks.db"
)

// DefaultPath returns the chunk database path inside a project directory.
func DefaultPath(projectDir string) string {
	return filepath.Join(projectDir, defaultDirName, defaultFileName)
}

// Store keeps compiled chunks in SQLite so repeated runs skip parsing and
// compiling unchanged sources. An entry is keyed by source file and
// bytecode format; the recorded modification time must match exactly for a
// read to hit, so a touched source recompiles and overwrites its entry.
type Store struct {
	db      *sql.DB
	path    string
	session string
}

var _ runtime.ChunkStore = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS chunks (
	file       TEXT    NOT NULL,
	format     INTEGER NOT NULL,
	mtime      INTEGER NOT NULL,
	data       BLOB    NOT NULL,
	session    TEXT    NOT NULL,
	written_at INTEGER NOT NULL,
	PRIMARY KEY (file, format)
)`

// Open opens the chunk database at path, creating it and its directory as
// needed. Use ":memory:" for a throwaway in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening chunk database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging chunk database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}
	return &Store{db: db, path: path, session: uuid.NewString()}, nil
}

// Session identifies this open store in entry listings.
func (s *Store) Session() string { return s.session }

// Path returns where the database lives.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the cached chunk for a source file when the recorded
// modification time and bytecode format both match.
func (s *Store) Get(file string, mtime int64, format bytecode.Format) (*bytecode.Chunk, bool, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM chunks WHERE file = ? AND format = ? AND mtime = ?",
		file, int64(format), mtime,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading chunk row: %w", err)
	}
	chunk, err := bytecode.UnmarshalChunk(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cached chunk: %w", err)
	}
	return chunk, true, nil
}

// Put stores a compiled chunk, replacing any entry for the same file and
// format.
func (s *Store) Put(file string, mtime int64, format bytecode.Format, chunk *bytecode.Chunk) error {
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO chunks (file, format, mtime, data, session, written_at) VALUES (?, ?, ?, ?, ?, ?)",
		file, int64(format), mtime, data, s.session, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing chunk row: %w", err)
	}
	return nil
}

// Entry describes one cached chunk.
type Entry struct {
	File    string
	Format  bytecode.Format
	Mtime   int64
	Size    int64
	Session string
	Written time.Time
}

// Entries lists the cached chunks, newest first.
func (s *Store) Entries() ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT file, format, mtime, length(data), session, written_at FROM chunks ORDER BY written_at DESC, file")
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var format, written int64
		if err := rows.Scan(&e.File, &format, &e.Mtime, &e.Size, &e.Session, &written); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		e.Format = bytecode.Format(format)
		e.Written = time.Unix(written, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	return entries, nil
}

// Clear drops every cached chunk and reports how many were removed.
func (s *Store) Clear() (int64, error) {
	res, err := s.db.Exec("DELETE FROM chunks")
	if err != nil {
		return 0, fmt.Errorf("clearing chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clearing chunks: %w", err)
	}
	return n, nil
}
