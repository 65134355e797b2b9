package vm

import (
	"context"
	"fmt"

	"github.com/maestro-lang/maestro/value"
)

// Execute runs the named command of exe with input piped into it and args
// as its parameters, returning the command's output tuple.
//
// The VM is reset before and torn down after the call; nothing survives
// between executions. A VM runs one execution at a time.
func (vm *VirtualMachine) Execute(ctx context.Context, exe *Executable, command string, input []value.Value, args ...value.Value) ([]value.Value, error) {
	if exe == nil || exe.Assembly == nil {
		return nil, fmt.Errorf("execute: no executable")
	}
	index, ok := exe.Assembly.FindCommand(command)
	if !ok {
		return nil, fmt.Errorf("execute: command %q not found in %s", command, exe.Assembly.Name)
	}
	return vm.ExecuteIndex(ctx, exe, index, input, args...)
}

// ExecuteIndex is Execute addressing the command by its definition index.
func (vm *VirtualMachine) ExecuteIndex(ctx context.Context, exe *Executable, index int, input []value.Value, args ...value.Value) (result []value.Value, err error) {
	if exe == nil || exe.Assembly == nil {
		return nil, fmt.Errorf("execute: no executable")
	}
	asm := exe.Assembly
	if index < 0 || index >= len(asm.Commands) {
		return nil, fmt.Errorf("execute: command index %d out of range", index)
	}
	def := asm.Commands[index]
	if len(args) != def.ParameterCount {
		return nil, fmt.Errorf("execute: command %q takes %d arguments (%d given)",
			def.Name, def.ParameterCount, len(args))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := vm.start(); err != nil {
		return nil, err
	}
	ended := false
	end := func() {
		if vm.debugger != nil && !ended {
			ended = true
			vm.debugger.OnEnd(vm, asm)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			result = nil
			end()
		}
		vm.reset()
		vm.stop()
	}()

	vm.reset()
	vm.stack = append(vm.stack, input...)
	vm.stack = append(vm.stack, args...)
	vm.inputSlices = append(vm.inputSlices, inputSlice{index: 0, length: len(input), tupleDepth: 0})
	vm.stackFrames = append(vm.stackFrames,
		StackFrame{CodeIndex: len(asm.Bytes) - 1, Executable: exe},
		StackFrame{CodeIndex: def.CodeIndex, StackIndex: len(input), CommandIndex: index, Executable: exe},
	)

	vm.logger.Debug().
		Str("assembly", asm.Name).
		Str("command", def.Name).
		Int("inputs", len(input)).
		Msg("execute")

	if vm.debugger != nil {
		vm.debugger.OnBegin(vm, asm)
	}
	err = vm.run(ctx)
	end()
	if err != nil {
		return nil, err
	}

	count := vm.tupleSizes[len(vm.tupleSizes)-1]
	result = make([]value.Value, count)
	copy(result, vm.stack[len(vm.stack)-count:])
	return result, nil
}
