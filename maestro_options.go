package maestro

import (
	"github.com/maestro-lang/maestro/builtins"
	"github.com/maestro-lang/maestro/compiler"
	"github.com/maestro-lang/maestro/vm"
	"github.com/rs/zerolog"
)

// Option configures an Engine.
type Option func(*Engine)

// WithDebug compiles programs in debug mode so attached debuggers receive
// hooks and variable information.
func WithDebug(enabled bool) Option {
	return func(e *Engine) {
		if enabled {
			e.mode = compiler.Debug
		} else {
			e.mode = compiler.Release
		}
	}
}

// WithLogger sets the logger used by the engine and its virtual machines.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDebugger attaches a debugger to every execution.
func WithDebugger(debugger vm.Debugger) Option {
	return func(e *Engine) {
		e.vmOptions = append(e.vmOptions, vm.WithDebugger(debugger))
	}
}

// WithTrace logs each executed instruction at trace level.
func WithTrace(enabled bool) Option {
	return func(e *Engine) {
		e.vmOptions = append(e.vmOptions, vm.WithTrace(enabled))
	}
}

// WithMaxFrameDepth limits how deeply commands may call each other.
func WithMaxFrameDepth(depth int) Option {
	return func(e *Engine) {
		e.vmOptions = append(e.vmOptions, vm.WithMaxFrameDepth(depth))
	}
}

// WithBuiltins configures the default commands registered by New.
func WithBuiltins(opts ...builtins.Option) Option {
	return func(e *Engine) {
		e.builtinOptions = append(e.builtinOptions, opts...)
	}
}

// WithoutBuiltins starts the engine with an empty command registry.
func WithoutBuiltins() Option {
	return func(e *Engine) {
		e.withoutBuiltins = true
	}
}

// WithSourceLoader resolves `include` declarations.
func WithSourceLoader(loader compiler.SourceLoader) Option {
	return func(e *Engine) {
		e.loader = loader
	}
}
