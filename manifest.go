package skink

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/skinklang/skink/internal/bytecode"
)

// Manifest represents a skink.yaml project file. All fields are optional;
// an empty manifest marks a project root and nothing more.
type Manifest struct {
	// Name labels the project. Informational.
	Name string `yaml:"name,omitempty"`

	// SearchPath lists module roots, relative to the manifest's directory
	// unless absolute. When empty the manifest's directory is the only root.
	SearchPath []string `yaml:"search_path,omitempty"`

	// Cache enables the compiled-chunk cache.
	Cache bool `yaml:"cache,omitempty"`

	// CachePath overrides where the chunk database lives. Relative paths
	// resolve against the manifest's directory.
	CachePath string `yaml:"cache_path,omitempty"`

	// Format pins the bytecode format. Zero means the current format.
	Format int `yaml:"format,omitempty"`
}

// LoadManifest reads and parses a skink.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return ParseManifest(data, path)
}

// ParseManifest parses skink.yaml content from bytes. The path argument is
// used only for error messages.
func ParseManifest(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindManifest searches for skink.yaml starting from dir and walking up to
// parent directories. Returns the path if found, or empty string and nil
// error if not.
func FindManifest(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range []string{"skink.yaml", "skink.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (m *Manifest) validate(path string) error {
	if m.Format != 0 && !bytecode.Format(m.Format).Known() {
		return fmt.Errorf("%s: unknown bytecode format %d", path, m.Format)
	}
	for i, root := range m.SearchPath {
		if root == "" {
			return fmt.Errorf("%s: search_path[%d] is empty", path, i)
		}
	}
	return nil
}

// Roots returns the module roots the manifest declares, resolved against
// baseDir (the manifest's directory). An empty search_path yields baseDir.
func (m *Manifest) Roots(baseDir string) []string {
	if len(m.SearchPath) == 0 {
		return []string{baseDir}
	}
	roots := make([]string, len(m.SearchPath))
	for i, root := range m.SearchPath {
		if filepath.IsAbs(root) {
			roots[i] = root
		} else {
			roots[i] = filepath.Join(baseDir, root)
		}
	}
	return roots
}

// BytecodeFormat returns the pinned format, or the current one when unset.
func (m *Manifest) BytecodeFormat() bytecode.Format {
	if m.Format == 0 {
		return bytecode.FormatCurrent
	}
	return bytecode.Format(m.Format)
}
