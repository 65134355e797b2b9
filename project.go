package maestro

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/manifest"
	"github.com/maestro-lang/maestro/vm"
)

// ArtifactExt is the file extension of compiled assemblies.
const ArtifactExt = ".mbc"

// Project is a compiled maestro.toml project.
type Project struct {
	Manifest *manifest.Manifest
	Assembly *bytecode.Assembly

	modules *projectModules
}

// Modules returns every module compiled or loaded for the project so far,
// by name.
func (p *Project) Modules() bytecode.Modules {
	result := bytecode.Modules{}
	for name, asm := range p.modules.loaded {
		result[name] = asm
	}
	return result
}

// CompileProject compiles the entry source of a project after its prelude
// sources. Modules declared by the manifest are compiled or loaded when
// first imported. Modules added to the engine take precedence.
func (e *Engine) CompileProject(m *manifest.Manifest) (*Project, error) {
	loader := m.Loader()
	saved := e.loader
	e.loader = loader
	defer func() { e.loader = saved }()

	modules := &projectModules{
		engine:   e,
		manifest: m,
		loader:   loader,
		loaded:   map[string]*bytecode.Assembly{},
	}
	sources := make([]bytecode.Source, 0, len(m.Source.Prelude)+1)
	for _, uri := range append([]string{m.Source.Entry}, m.Source.Prelude...) {
		content, err := loader.LoadSource(uri)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", m.Project.Name, err)
		}
		sources = append(sources, bytecode.Source{URI: uri, Content: content})
	}
	asm, err := e.compile(m.Project.Name, modules, sources)
	if err != nil {
		return nil, err
	}
	return &Project{Manifest: m, Assembly: asm, modules: modules}, nil
}

// LinkProject links a compiled project.
func (e *Engine) LinkProject(p *Project) (*vm.Executable, error) {
	return e.link(p.Assembly, p.modules)
}

// projectModules resolves imports against the engine modules and the
// manifest, caching what it compiled so linking sees the same assemblies.
type projectModules struct {
	engine    *Engine
	manifest  *manifest.Manifest
	loader    manifest.DirLoader
	loaded    map[string]*bytecode.Assembly
	resolving []string
}

func (p *projectModules) ResolveModule(name string) (*bytecode.Assembly, error) {
	if asm, ok := p.engine.modules[name]; ok {
		return asm, nil
	}
	if asm, ok := p.loaded[name]; ok {
		return asm, nil
	}
	mod, ok := p.manifest.Modules[name]
	if !ok {
		return nil, fmt.Errorf("module not found: %s", name)
	}
	for _, pending := range p.resolving {
		if pending == name {
			return nil, fmt.Errorf("import cycle: %s -> %s", strings.Join(p.resolving, " -> "), name)
		}
	}
	p.resolving = append(p.resolving, name)
	defer func() { p.resolving = p.resolving[:len(p.resolving)-1] }()

	var asm *bytecode.Assembly
	if mod.Artifact != "" {
		loaded, err := ReadArtifact(p.manifest.Resolve(mod.Artifact))
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		asm = loaded
	} else {
		content, err := p.loader.LoadSource(mod.Path)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		compiled, err := p.engine.compile(name, p, []bytecode.Source{{URI: mod.Path, Content: content}})
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		asm = compiled
	}
	p.loaded[name] = asm
	return asm, nil
}

// ReadArtifact loads a compiled assembly from file.
func ReadArtifact(file string) (*bytecode.Assembly, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return bytecode.Unmarshal(data)
}

// WriteArtifact stores a compiled assembly in file, creating its directory.
func WriteArtifact(file string, asm *bytecode.Assembly) error {
	data, err := bytecode.Marshal(asm)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o644)
}

// ArtifactDir resolves imports to artifacts named after the module in a
// directory, as written by WriteProject.
type ArtifactDir string

// ResolveModule implements vm.ModuleResolver.
func (d ArtifactDir) ResolveModule(name string) (*bytecode.Assembly, error) {
	asm, err := ReadArtifact(filepath.Join(string(d), name+ArtifactExt))
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}
	return asm, nil
}

// WriteProject writes the project assembly to the manifest's output path
// and each module it compiled next to it. It returns the written files.
func WriteProject(p *Project) ([]string, error) {
	output := p.Manifest.OutputPath()
	if err := WriteArtifact(output, p.Assembly); err != nil {
		return nil, err
	}
	written := []string{output}
	dir := filepath.Dir(output)
	for name, asm := range p.Modules() {
		file := filepath.Join(dir, name+ArtifactExt)
		if err := WriteArtifact(file, asm); err != nil {
			return written, err
		}
		written = append(written, file)
	}
	return written, nil
}

// LinkArtifact links a compiled assembly, resolving its imports from the
// engine modules and from artifacts in the same directory as file.
func (e *Engine) LinkArtifact(file string) (*vm.Executable, error) {
	asm, err := ReadArtifact(file)
	if err != nil {
		return nil, err
	}
	return e.link(asm, moduleChain{e.modules, ArtifactDir(filepath.Dir(file))})
}

// moduleChain resolves from the first resolver that knows a module.
type moduleChain []vm.ModuleResolver

func (c moduleChain) ResolveModule(name string) (*bytecode.Assembly, error) {
	var err error
	for _, r := range c {
		var asm *bytecode.Assembly
		if asm, err = r.ResolveModule(name); err == nil {
			return asm, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("module not found: %s", name)
	}
	return nil, err
}
