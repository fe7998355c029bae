// Package skink embeds the Skink interpreter: a small scripting language
// with classes, modules and a lazy-import guard that defers failing imports
// inside a `with lazy_import()` block until first use.
//
// The zero-configuration path:
//
//	interp := skink.New()
//	err := interp.RunFile("app.sk")
//
// Options control the module search path, bytecode format, compiled-chunk
// cache, logging and script output. Interpreters are not safe for
// concurrent use.
package skink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/skinklang/skink/internal/ast"
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/compiler"
	"github.com/skinklang/skink/internal/lazyimport"
	"github.com/skinklang/skink/internal/lexer"
	"github.com/skinklang/skink/internal/object"
	"github.com/skinklang/skink/internal/parser"
	"github.com/skinklang/skink/internal/runtime"
)

// SourceExt is the file extension of Skink source files.
const SourceExt = runtime.SourceExt

// EnvSearchPath is the environment variable listing module roots, in
// os.PathListSeparator-separated form.
const EnvSearchPath = "SKINK_PATH"

// Interp ties a VM, a module loader and the lazy-import guard together
// behind a small embedding API.
type Interp struct {
	vm     *runtime.VM
	loader *runtime.Loader
	format bytecode.Format
	repl   *object.Module
}

type options struct {
	searchPath []string
	logger     *slog.Logger
	format     bytecode.Format
	chunks     runtime.ChunkStore
	out        io.Writer
}

// Option configures an Interp at construction time.
type Option func(*options)

// WithSearchPath sets the module roots, overriding SKINK_PATH and any
// skink.yaml manifest.
func WithSearchPath(roots ...string) Option {
	return func(o *options) { o.searchPath = roots }
}

// WithLogger sets the loader's logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFormat selects the bytecode format to compile and execute.
func WithFormat(format bytecode.Format) Option {
	return func(o *options) { o.format = format }
}

// WithChunkCache installs a compiled-chunk store consulted by the loader
// before parsing module sources.
func WithChunkCache(store runtime.ChunkStore) Option {
	return func(o *options) { o.chunks = store }
}

// WithOutput redirects script output (the print builtin).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// New builds an interpreter: VM, loader, builtins and the lazy_import
// guard, wired together. The module search path is resolved in order from
// the WithSearchPath option, the SKINK_PATH environment variable, a
// skink.yaml manifest found upward from the working directory, and finally
// the working directory itself.
func New(opts ...Option) *Interp {
	o := options{
		format: bytecode.FormatCurrent,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	vm := runtime.NewVM()
	vm.SetOutput(o.out)

	loader := runtime.NewLoader(o.format)
	loader.SetLogger(o.logger)
	if o.chunks != nil {
		loader.SetChunkStore(o.chunks)
	}
	loader.SetSearchPath(resolveSearchPath(o.searchPath))
	loader.AttachVM(vm)
	vm.SetLoader(loader)
	lazyimport.Register(vm)

	return &Interp{vm: vm, loader: loader, format: o.format}
}

// resolveSearchPath picks the module roots for a new interpreter.
func resolveSearchPath(explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	if env := os.Getenv(EnvSearchPath); env != "" {
		var roots []string
		for _, p := range filepath.SplitList(env) {
			if p != "" {
				roots = append(roots, p)
			}
		}
		if len(roots) > 0 {
			return roots
		}
	}
	if path, err := FindManifest("."); err == nil && path != "" {
		if m, err := LoadManifest(path); err == nil {
			return m.Roots(filepath.Dir(path))
		}
	}
	return []string{"."}
}

// SearchPath returns a copy of the module roots in effect.
func (in *Interp) SearchPath() []string { return in.loader.SearchPath() }

// Format returns the bytecode format the interpreter compiles to.
func (in *Interp) Format() bytecode.Format { return in.format }

// RunFile executes a script file. The script's directory is prepended to
// the module search path so sibling modules resolve, mirroring how a
// module's own imports are found.
func (in *Interp) RunFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	in.addRoot(filepath.Dir(abs))

	name := strings.TrimSuffix(filepath.Base(path), SourceExt)
	_, err = in.runChunk(name, string(src), object.NewModule(name))
	return err
}

// RunSource compiles and executes source in a fresh module. The name
// appears in stack traces and disassembly.
func (in *Interp) RunSource(name, src string) (object.Object, error) {
	return in.runChunk(name, src, object.NewModule(name))
}

// EvalLine executes one line of input against a module shared across
// calls, so bindings persist the way they do in a REPL session. When the
// final statement is an expression its value is bound to "_" and returned;
// otherwise the result is nil.
func (in *Interp) EvalLine(src string) (object.Object, error) {
	if in.repl == nil {
		in.repl = object.NewModule("repl")
	}

	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if err := parseError("repl", p.Errors()); err != nil {
		return nil, err
	}

	echo := false
	if n := len(prog.Statements); n > 0 {
		if es, ok := prog.Statements[n-1].(*ast.ExpressionStatement); ok {
			prog.Statements[n-1] = &ast.AssignStatement{
				Token:  es.Token,
				Target: &ast.Identifier{Token: es.Token, Value: "_"},
				Value:  es.Expression,
			}
			echo = true
		}
	}

	chunk, err := compiler.New(in.format).Compile(prog, "repl")
	if err != nil {
		return nil, fmt.Errorf("compiling repl input: %w", err)
	}
	if _, err := in.vm.RunModule(chunk, in.repl); err != nil {
		return nil, err
	}
	if echo {
		if v, ok := in.repl.Names["_"]; ok {
			return v, nil
		}
	}
	return object.NilValue, nil
}

// Import loads a module through the interpreter's loader, executing it on
// first use and returning the cached module afterwards.
func (in *Interp) Import(path string) (*object.Module, error) {
	return in.loader.ImportModule(path)
}

// Disassemble compiles a script file and returns the bytecode listing,
// nested function prototypes included.
func (in *Interp) Disassemble(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), SourceExt)
	chunk, err := in.compile(name, string(src))
	if err != nil {
		return "", err
	}
	return bytecode.Disassemble(chunk), nil
}

func (in *Interp) runChunk(name, src string, mod *object.Module) (object.Object, error) {
	chunk, err := in.compile(name, src)
	if err != nil {
		return nil, err
	}
	return in.vm.RunModule(chunk, mod)
}

func (in *Interp) compile(name, src string) (*bytecode.Chunk, error) {
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if err := parseError(name, p.Errors()); err != nil {
		return nil, err
	}
	chunk, err := compiler.New(in.format).Compile(prog, name)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	return chunk, nil
}

func parseError(name string, errs []*parser.Error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("parsing %s: %s", name, strings.Join(msgs, "; "))
}

// addRoot prepends a directory to the search path unless already present.
func (in *Interp) addRoot(dir string) {
	roots := in.loader.SearchPath()
	for _, r := range roots {
		if r == dir {
			return
		}
	}
	in.loader.SetSearchPath(append([]string{dir}, roots...))
}
