// Package manifest handles maestro.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project file.
const FileName = "maestro.toml"

// Manifest represents a maestro.toml project configuration.
type Manifest struct {
	Project Project           `toml:"project"`
	Source  Source            `toml:"source"`
	Modules map[string]Module `toml:"modules"`
	Build   Build             `toml:"build"`

	// Dir is the directory containing the maestro.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// Source configures the program sources. Paths are relative to the project
// directory and use forward slashes.
type Source struct {
	Entry string `toml:"entry"`
	// Prelude lists library units compiled ahead of the entry source.
	Prelude []string `toml:"prelude"`
}

// Module is a named module other sources may import. Exactly one of Path
// (a source file) or Artifact (a compiled assembly) is set.
type Module struct {
	Path     string `toml:"path"`
	Artifact string `toml:"artifact"`
}

// Build configures compilation and execution.
type Build struct {
	Debug         bool   `toml:"debug"`
	Output        string `toml:"output"`
	MaxFrameDepth int    `toml:"max-frame-depth"`
}

// Load parses the maestro.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	file := filepath.Join(dir, FileName)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", file, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", file, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.Source.Entry == "" {
		m.Source.Entry = "main.mae"
	}
	if m.Build.Output == "" {
		m.Build.Output = path.Join("build", m.Project.Name+".mbc")
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", file, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a maestro.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the module table and source paths.
func (m *Manifest) Validate() error {
	for _, p := range append([]string{m.Source.Entry}, m.Source.Prelude...) {
		if err := checkPath(p); err != nil {
			return fmt.Errorf("source %q: %w", p, err)
		}
	}
	for _, name := range m.ModuleNames() {
		mod := m.Modules[name]
		switch {
		case strings.TrimSpace(name) == "":
			return fmt.Errorf("module names must not be empty")
		case mod.Path != "" && mod.Artifact != "":
			return fmt.Errorf("module %q: path and artifact are mutually exclusive", name)
		case mod.Path == "" && mod.Artifact == "":
			return fmt.Errorf("module %q: path or artifact is required", name)
		}
		if err := checkPath(mod.Path + mod.Artifact); err != nil {
			return fmt.Errorf("module %q: %w", name, err)
		}
	}
	if m.Build.MaxFrameDepth < 0 {
		return fmt.Errorf("build.max-frame-depth must not be negative")
	}
	return nil
}

func checkPath(p string) error {
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return fmt.Errorf("path must be relative to the project")
	}
	if clean := path.Clean(p); clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path leaves the project directory")
	}
	return nil
}

// ModuleNames returns the declared module names in sorted order.
func (m *Manifest) ModuleNames() []string {
	names := make([]string, 0, len(m.Modules))
	for name := range m.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the absolute file path of a project relative path.
func (m *Manifest) Resolve(rel string) string {
	return filepath.Join(m.Dir, filepath.FromSlash(rel))
}

// OutputPath returns the absolute path of the build artifact.
func (m *Manifest) OutputPath() string {
	return m.Resolve(m.Build.Output)
}

// Loader returns a source loader rooted at the project directory.
func (m *Manifest) Loader() DirLoader {
	return DirLoader(m.Dir)
}

// DirLoader loads sources by slash separated path relative to a directory.
type DirLoader string

// LoadSource reads the file at uri.
func (d DirLoader) LoadSource(uri string) (string, error) {
	if err := checkPath(uri); err != nil {
		return "", fmt.Errorf("%s: %w", uri, err)
	}
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(uri)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
