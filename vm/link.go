package vm

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/maestro-lang/maestro/bytecode"
)

// ModuleResolver returns compiled modules by name for linking.
type ModuleResolver interface {
	ResolveModule(name string) (*bytecode.Assembly, error)
}

// Executable is an Assembly bound to the host command instances of its
// call sites and to its linked dependencies. It is what the VM runs.
//
// Native instances may hold state, so an Executable must not be run by two
// VMs at the same time. Link the same Assembly again to get an independent
// Executable.
type Executable struct {
	Assembly *bytecode.Assembly

	natives      []NativeCommand
	dependencies []*Executable
}

// Dependency returns the linked executable of the module at index, as
// addressed by ExecuteExternalCommand.
func (e *Executable) Dependency(index int) *Executable {
	return e.dependencies[index]
}

// Link validates asm and resolves its native call sites against registry
// and its imports against modules. Each dependency must be the exact
// assembly asm was compiled against.
func Link(asm *bytecode.Assembly, registry *Registry, modules ModuleResolver) (*Executable, error) {
	l := &linker{
		registry: registry,
		modules:  modules,
		linked:   map[uuid.UUID]*Executable{},
	}
	return l.link(asm, nil)
}

type linker struct {
	registry *Registry
	modules  ModuleResolver
	linked   map[uuid.UUID]*Executable
}

func (l *linker) link(asm *bytecode.Assembly, path []string) (*Executable, error) {
	if exe, ok := l.linked[asm.ID]; ok {
		return exe, nil
	}
	for _, name := range path {
		if name == asm.Name {
			return nil, fmt.Errorf("link: module %q imports itself", asm.Name)
		}
	}
	if err := asm.Validate(); err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}

	exe := &Executable{
		Assembly: asm,
		natives:  make([]NativeCommand, len(asm.NativeInstances)),
	}
	for i, inst := range asm.NativeInstances {
		def := asm.NativeCommands[inst.DefinitionIndex]
		if l.registry == nil {
			return nil, fmt.Errorf("link: %s: native command %q is not registered", asm.Name, def.Name)
		}
		native, ok := l.registry.Lookup(def.Name)
		if !ok {
			return nil, fmt.Errorf("link: %s: native command %q is not registered", asm.Name, def.Name)
		}
		if native.ParameterCount != def.ParameterCount {
			return nil, fmt.Errorf("link: %s: native command %q takes %d parameters, declared with %d",
				asm.Name, def.Name, native.ParameterCount, def.ParameterCount)
		}
		command := native.Factory()
		if command == nil {
			return nil, fmt.Errorf("link: %s: factory for %q returned nil", asm.Name, def.Name)
		}
		exe.natives[i] = command
	}

	path = append(path, asm.Name)
	for _, dep := range asm.Dependencies {
		if l.modules == nil {
			return nil, fmt.Errorf("link: %s: cannot resolve module %q: no modules are available", asm.Name, dep.Name)
		}
		depAsm, err := l.modules.ResolveModule(dep.Name)
		if err != nil {
			return nil, fmt.Errorf("link: %s: %w", asm.Name, err)
		}
		if depAsm.ID != dep.ID {
			return nil, fmt.Errorf("link: %s: module %q changed since it was imported (expected %s, found %s)",
				asm.Name, dep.Name, dep.ID, depAsm.ID)
		}
		depExe, err := l.link(depAsm, path)
		if err != nil {
			return nil, err
		}
		exe.dependencies = append(exe.dependencies, depExe)
	}
	l.linked[asm.ID] = exe
	return exe, nil
}
