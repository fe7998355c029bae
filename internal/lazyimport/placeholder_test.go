package lazyimport

import (
	"strings"
	"testing"

	"github.com/skinklang/skink/internal/object"
)

func TestPlaceholderResolveTarget(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib", "value = 7\n")
	_, loader := newGuardVM(root)

	p := NewPlaceholder(loader, "lib", "value")
	if m, n := p.Describe(); m != "lib" || n != "value" {
		t.Errorf("Describe() = %q, %q", m, n)
	}
	if p.Loaded() {
		t.Fatalf("placeholder loaded before resolution")
	}
	if got := p.Inspect(); got != "<lazy value from lib>" {
		t.Errorf("Inspect() = %q", got)
	}

	target, err := p.ResolveTarget()
	if err != nil {
		t.Fatalf("resolve error: %s", err)
	}
	testIntegerObject(t, target, 7)
	if !p.Loaded() {
		t.Errorf("placeholder not loaded after resolution")
	}
	if got := p.Inspect(); got != "7" {
		t.Errorf("Inspect() after resolution = %q", got)
	}

	again, err := p.ResolveTarget()
	if err != nil {
		t.Fatalf("second resolve error: %s", err)
	}
	if again != target {
		t.Errorf("second resolution produced a different object")
	}
}

func TestPlaceholderMissingMember(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib", "value = 7\n")
	_, loader := newGuardVM(root)

	p := NewPlaceholder(loader, "lib", "gone")
	_, err := p.ResolveTarget()
	if err == nil || !strings.Contains(err.Error(), `module "lib" has no attribute "gone"`) {
		t.Errorf("error = %v", err)
	}
	if p.Loaded() {
		t.Errorf("failed resolution marked the placeholder loaded")
	}
}

func TestPlaceholderImportFailure(t *testing.T) {
	root := t.TempDir()
	_, loader := newGuardVM(root)

	p := NewPlaceholder(loader, "void/mod", "X")
	_, err := p.ResolveTarget()
	if err == nil || !strings.Contains(err.Error(), `no module named "void/mod"`) {
		t.Errorf("error = %v", err)
	}
	if p.Loaded() {
		t.Errorf("failed resolution marked the placeholder loaded")
	}
}

func TestPlaceholderInstanceSurface(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lab", `class Probe {
	unit = "C"

	fn init(self, v) {
		self.v = v
	}

	fn read(self) {
		return self.v
	}
}

probe = Probe(21)
`)
	_, loader := newGuardVM(root)

	p := NewPlaceholder(loader, "lab", "probe")

	v, err := p.ResolveMember("v")
	if err != nil {
		t.Fatalf("resolve member error: %s", err)
	}
	testIntegerObject(t, v, 21)

	unit, err := p.ResolveMember("unit")
	if err != nil {
		t.Fatalf("resolve member error: %s", err)
	}
	testStringObject(t, unit, "C")

	read, err := p.ResolveMember("read")
	if err != nil {
		t.Fatalf("resolve member error: %s", err)
	}
	if _, ok := read.(*object.BoundMethod); !ok {
		t.Errorf("method member is %T, want BoundMethod", read)
	}

	if _, err := p.ResolveMember("zzz"); err == nil ||
		!strings.Contains(err.Error(), `has no attribute "zzz"`) {
		t.Errorf("error = %v", err)
	}
}

func TestPlaceholderModuleSurface(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib", "value = 7\n")
	writeSource(t, root, "rex", "import \"lib\"\n")
	_, loader := newGuardVM(root)

	p := NewPlaceholder(loader, "rex", "lib")
	v, err := p.ResolveMember("value")
	if err != nil {
		t.Fatalf("resolve member error: %s", err)
	}
	testIntegerObject(t, v, 7)
}
