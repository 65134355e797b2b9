// Package maestro compiles and runs maestro pipeline scripts.
//
// An Engine owns the host commands scripts may call and the modules they may
// import. Compiled assemblies are linked into executables that any number
// of virtual machines can run:
//
//	e := maestro.New()
//	out, err := e.Run(ctx, `"hello", "world" | concat;`)
package maestro

import (
	"context"
	"fmt"

	"github.com/maestro-lang/maestro/builtins"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/compiler"
	"github.com/maestro-lang/maestro/value"
	"github.com/maestro-lang/maestro/vm"
	"github.com/rs/zerolog"
)

// MainURI names the source compiled by Run.
const MainURI = "main.mae"

// PreludeURI names the generated source declaring the registered commands.
const PreludeURI = "<prelude>"

// Engine compiles, links and executes programs against a shared set of host
// commands and modules.
type Engine struct {
	registry *vm.Registry
	modules  bytecode.Modules
	loader   compiler.SourceLoader
	mode     compiler.Mode
	logger   zerolog.Logger

	vmOptions       []vm.Option
	builtinOptions  []builtins.Option
	withoutBuiltins bool
}

// New returns an Engine with the builtin commands registered.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: vm.NewRegistry(),
		modules:  bytecode.Modules{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if !e.withoutBuiltins {
		// The registry is empty, so registering cannot collide.
		if err := builtins.Register(e.registry, e.builtinOptions...); err != nil {
			panic(err)
		}
	}
	return e
}

// Registry returns the host commands available to programs.
func (e *Engine) Registry() *vm.Registry {
	return e.registry
}

// Debug reports whether programs are compiled in debug mode.
func (e *Engine) Debug() bool {
	return e.mode == compiler.Debug
}

// RegisterCommand adds a host command. Each call site of the command gets
// its own instance from factory.
func (e *Engine) RegisterCommand(name string, parameterCount int, factory vm.NativeFactory) error {
	return e.registry.Register(name, parameterCount, factory)
}

// RegisterFunc adds a stateless host command.
func (e *Engine) RegisterFunc(name string, parameterCount int, fn vm.NativeFunc) error {
	return e.registry.RegisterFunc(name, parameterCount, fn)
}

// AddModule makes a compiled assembly importable under name.
func (e *Engine) AddModule(name string, asm *bytecode.Assembly) error {
	if asm == nil {
		return fmt.Errorf("module %q: assembly is nil", name)
	}
	if _, exists := e.modules[name]; exists {
		return fmt.Errorf("module %q is already added", name)
	}
	e.modules[name] = asm
	return nil
}

// CompileModule compiles sources as a module and adds it under name.
func (e *Engine) CompileModule(name string, sources ...bytecode.Source) (*bytecode.Assembly, error) {
	asm, err := e.compile(name, e.modules, sources)
	if err != nil {
		return nil, err
	}
	if err := e.AddModule(name, asm); err != nil {
		return nil, err
	}
	return asm, nil
}

// Compile compiles a program. The first source is the main unit; further
// sources are library units compiled ahead of it.
func (e *Engine) Compile(sources ...bytecode.Source) (*bytecode.Assembly, error) {
	return e.compile("main", e.modules, sources)
}

func (e *Engine) compile(name string, modules compiler.ModuleResolver, sources []bytecode.Source) (*bytecode.Assembly, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("compile %s: no sources", name)
	}
	if len(e.registry.Names()) > 0 {
		sources = append(sources, bytecode.Source{URI: PreludeURI, Content: e.registry.Prelude()})
	}
	cfg := &compiler.Config{
		Name:    name,
		Mode:    e.mode,
		Natives: e.registry,
		Modules: modules,
		Sources: e.loader,
	}
	asm, err := compiler.Compile(cfg, sources...)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().
		Str("assembly", asm.Name).
		Str("id", asm.ID.String()).
		Int("bytes", len(asm.Bytes)).
		Int("commands", len(asm.Commands)).
		Msg("compiled")
	return asm, nil
}

// Link binds asm to the engine's host commands and modules.
func (e *Engine) Link(asm *bytecode.Assembly) (*vm.Executable, error) {
	return e.link(asm, e.modules)
}

func (e *Engine) link(asm *bytecode.Assembly, modules vm.ModuleResolver) (*vm.Executable, error) {
	exe, err := vm.Link(asm, e.registry, modules)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Str("assembly", asm.Name).Int("dependencies", len(asm.Dependencies)).Msg("linked")
	return exe, nil
}

// NewVM returns a virtual machine configured with the engine's options
// followed by opts.
func (e *Engine) NewVM(opts ...vm.Option) *vm.VirtualMachine {
	all := append([]vm.Option{vm.WithLogger(e.logger)}, e.vmOptions...)
	return vm.New(append(all, opts...)...)
}

// Execute runs command of exe on a new virtual machine.
func (e *Engine) Execute(ctx context.Context, exe *vm.Executable, command string, input []value.Value, args ...value.Value) ([]value.Value, error) {
	return e.NewVM().Execute(ctx, exe, command, input, args...)
}

// Run compiles, links and executes source, piping input into it.
func (e *Engine) Run(ctx context.Context, source string, input ...value.Value) ([]value.Value, error) {
	asm, err := e.Compile(bytecode.Source{URI: MainURI, Content: source})
	if err != nil {
		return nil, err
	}
	exe, err := e.Link(asm)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, exe, bytecode.EntryCommand, input)
}
