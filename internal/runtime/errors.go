package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skinklang/skink/internal/bytecode"
)

// ImportKind says why an import could not be completed.
type ImportKind int

const (
	// ImportNotFound means no source file resolved for the path.
	ImportNotFound ImportKind = iota
	// ImportCycle means the module is already being loaded further up the
	// import chain.
	ImportCycle
	// ImportBadSource means the source was found but failed to lex, parse
	// or compile.
	ImportBadSource
	// ImportMissingName means an `import "path" (name)` form named a symbol
	// the module does not export.
	ImportMissingName
)

// ImportError is raised when a module cannot be imported. Cycle errors keep
// the words "circular import" in their message; the guard's exit handler
// matches on that text the way it matches on the error kind.
type ImportError struct {
	Path  string
	Kind  ImportKind
	Chain []string
	Msg   string
	Err   error
}

func (e *ImportError) Error() string { return e.Msg }

func (e *ImportError) Unwrap() error { return e.Err }

func newImportNotFound(path string) *ImportError {
	return &ImportError{
		Path: path,
		Kind: ImportNotFound,
		Msg:  fmt.Sprintf("no module named %q", path),
	}
}

func newImportCycle(path string, chain []string) *ImportError {
	return &ImportError{
		Path:  path,
		Kind:  ImportCycle,
		Chain: chain,
		Msg: fmt.Sprintf("circular import of %q (import chain: %s)",
			path, strings.Join(chain, " -> ")),
	}
}

func newImportBadSource(path string, cause error) *ImportError {
	return &ImportError{
		Path: path,
		Kind: ImportBadSource,
		Msg:  fmt.Sprintf("cannot load %q: %v", path, cause),
		Err:  cause,
	}
}

func newImportMissingName(path, name string) *ImportError {
	return &ImportError{
		Path: path,
		Kind: ImportMissingName,
		Msg:  fmt.Sprintf("cannot import name %q from %q", name, path),
	}
}

// RuntimeError is a failure annotated with its source position and stack
// trace. An error is wrapped exactly once, by the interpreter it escaped;
// errors crossing module boundaries keep their original annotation.
type RuntimeError struct {
	Line  int
	Trace string
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: ERROR at line %d: %s\nStack trace:%s", e.Line, e.Err, e.Trace)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// InternalError marks a broken interpreter invariant. With blocks never
// suppress it.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return e.Msg }

func internalErrorf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedFormatError is raised when a chunk's bytecode format is not one
// the running interpreter knows how to analyze or execute.
type UnsupportedFormatError struct {
	Format bytecode.Format
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("bytecode format %d is not supported", uint16(e.Format))
}

// isFatal reports whether an error must bypass with-block handlers. Handlers
// see ordinary runtime and import errors only. The check looks through
// wrappers so a fatal error stays fatal across module boundaries.
func isFatal(err error) bool {
	var ie *InternalError
	var ufe *UnsupportedFormatError
	return errors.As(err, &ie) || errors.As(err, &ufe)
}
