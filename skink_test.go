package skink_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skinklang/skink"
	"github.com/skinklang/skink/internal/object"
)

func writeSource(t *testing.T, root, path, src string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(path)+skink.SourceExt)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return full
}

func TestRunSourceOutput(t *testing.T) {
	var out bytes.Buffer
	interp := skink.New(skink.WithOutput(&out))

	_, err := interp.RunSource("demo", `
fn greet(who) {
    return "hello " + who
}
print(greet("skink"))
`)
	if err != nil {
		t.Fatalf("RunSource failed: %v", err)
	}
	if got := out.String(); got != "hello skink\n" {
		t.Errorf("output is %q, want %q", got, "hello skink\n")
	}
}

func TestRunSourceReportsRuntimeErrors(t *testing.T) {
	interp := skink.New(skink.WithOutput(&bytes.Buffer{}))

	_, err := interp.RunSource("demo", "x = 1 / 0")
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("error is %q, want it to mention division by zero", err)
	}
	if !strings.Contains(err.Error(), "Stack trace:") {
		t.Errorf("error is %q, want a stack trace", err)
	}
}

func TestRunSourceReportsParseErrors(t *testing.T) {
	interp := skink.New()

	_, err := interp.RunSource("demo", "fn (")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if !strings.Contains(err.Error(), "parsing demo") {
		t.Errorf("error is %q, want it to name the source", err)
	}
}

func TestRunFileResolvesSiblingImports(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib", `
fn greet() {
    return "from lib"
}
`)
	app := writeSource(t, root, "app", `
import "lib" (greet)
print(greet())
`)

	var out bytes.Buffer
	interp := skink.New(skink.WithOutput(&out), skink.WithSearchPath(t.TempDir()))
	if err := interp.RunFile(app); err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}
	if got := out.String(); got != "from lib\n" {
		t.Errorf("output is %q, want %q", got, "from lib\n")
	}
}

func TestRunFileMissing(t *testing.T) {
	interp := skink.New()
	err := interp.RunFile(filepath.Join(t.TempDir(), "nope.sk"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestEvalLinePersistsBindings(t *testing.T) {
	interp := skink.New(skink.WithOutput(&bytes.Buffer{}))

	if _, err := interp.EvalLine("x = 2"); err != nil {
		t.Fatalf("binding failed: %v", err)
	}
	got, err := interp.EvalLine("x + 3")
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	n, ok := got.(*object.Integer)
	if !ok {
		t.Fatalf("result is not Integer. got=%T (%+v)", got, got)
	}
	if n.Value != 5 {
		t.Errorf("result is %d, want 5", n.Value)
	}

	// Statements evaluate to nil.
	got, err = interp.EvalLine("y = x")
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if _, ok := got.(*object.Nil); !ok {
		t.Errorf("statement result is %T, want Nil", got)
	}

	// The last expression value stays reachable as _.
	got, err = interp.EvalLine("_")
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if n, ok := got.(*object.Integer); !ok || n.Value != 5 {
		t.Errorf("_ is %v, want 5", got)
	}
}

func TestEvalLineErrorsDoNotPoisonSession(t *testing.T) {
	interp := skink.New(skink.WithOutput(&bytes.Buffer{}))

	if _, err := interp.EvalLine("x = 1"); err != nil {
		t.Fatalf("binding failed: %v", err)
	}
	if _, err := interp.EvalLine("boom()"); err == nil {
		t.Fatal("expected an error for an undefined name")
	}
	got, err := interp.EvalLine("x")
	if err != nil {
		t.Fatalf("eval after error failed: %v", err)
	}
	if n, ok := got.(*object.Integer); !ok || n.Value != 1 {
		t.Errorf("x is %v after the error, want 1", got)
	}
}

func TestImportReturnsCachedModule(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib", "value = 7")

	interp := skink.New(skink.WithSearchPath(root))
	first, err := interp.Import("lib")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if v, ok := first.Names["value"]; !ok {
		t.Fatal("module has no binding for value")
	} else if n, ok := v.(*object.Integer); !ok || n.Value != 7 {
		t.Errorf("value is %v, want 7", v)
	}

	second, err := interp.Import("lib")
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if first != second {
		t.Error("second import did not return the cached module")
	}
}

func TestLazyImportGuardIsRegistered(t *testing.T) {
	var out bytes.Buffer
	interp := skink.New(skink.WithOutput(&out), skink.WithSearchPath(t.TempDir()))

	_, err := interp.RunSource("demo", `
with lazy_import() {
    import "missing/mod" (Thing)
}
print(type(Thing))
`)
	if err != nil {
		t.Fatalf("guarded import failed: %v", err)
	}
	if got := out.String(); got != "PLACEHOLDER\n" {
		t.Errorf("output is %q, want %q", got, "PLACEHOLDER\n")
	}
}

func TestDisassemble(t *testing.T) {
	root := t.TempDir()
	app := writeSource(t, root, "app", "x = 1 + 2")

	interp := skink.New()
	listing, err := interp.Disassemble(app)
	if err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}
	for _, want := range []string{"== app", "CONST", "ADD", "STORE_NAME"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestSearchPathFromEnv(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "envmod", "tag = \"env\"")
	t.Setenv(skink.EnvSearchPath, root)

	interp := skink.New()
	mod, err := interp.Import("envmod")
	if err != nil {
		t.Fatalf("Import via SKINK_PATH failed: %v", err)
	}
	if _, ok := mod.Names["tag"]; !ok {
		t.Error("module loaded from SKINK_PATH has no bindings")
	}
}

func TestSearchPathFromManifest(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeSource(t, filepath.Join(root, "src"), "manmod", "tag = \"manifest\"")
	manifest := "name: demo\nsearch_path:\n  - src\n"
	if err := os.WriteFile(filepath.Join(root, "skink.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(skink.EnvSearchPath, "")
	t.Chdir(filepath.Join(root, "src", "deep"))

	interp := skink.New()
	if _, err := interp.Import("manmod"); err != nil {
		t.Fatalf("Import via manifest search path failed: %v", err)
	}
}
