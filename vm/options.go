package vm

import (
	"github.com/maestro-lang/maestro/value"
	"github.com/rs/zerolog"
)

// Option is a configuration function for a Virtual Machine.
type Option func(*VirtualMachine)

// WithDebugger attaches a debugger. It only receives hooks while running
// assemblies compiled in debug mode.
func WithDebugger(debugger Debugger) Option {
	return func(vm *VirtualMachine) {
		vm.debugger = debugger
	}
}

// WithLogger sets the logger used for warnings and tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(vm *VirtualMachine) {
		vm.logger = logger
	}
}

// WithTrace logs every executed instruction together with the stack at
// trace level. Intended for debugging the VM itself.
func WithTrace(enabled bool) Option {
	return func(vm *VirtualMachine) {
		vm.trace = enabled
	}
}

// WithStackCapacity preallocates room for the given number of values.
func WithStackCapacity(capacity int) Option {
	return func(vm *VirtualMachine) {
		if capacity > cap(vm.stack) {
			vm.stack = make([]value.Value, 0, capacity)
		}
	}
}

// WithMaxFrameDepth limits how deeply commands may call each other.
// Exceeding it fails the execution with a RuntimeError. Zero or less
// removes the limit. The default is DefaultMaxFrameDepth.
func WithMaxFrameDepth(depth int) Option {
	return func(vm *VirtualMachine) {
		vm.maxFrameDepth = depth
	}
}
