package vm

import (
	"context"
	"fmt"

	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/value"
)

// run evaluates from the top frame until the sentinel frame halts.
//
// The loop works on local copies of the stacks and of the top frame. They
// are published back to the VM before anything outside the loop can observe
// them: debugger hooks, errors and Halt.
func (vm *VirtualMachine) run(ctx context.Context) error {
	frame := vm.stackFrames[len(vm.stackFrames)-1]
	exe := frame.Executable
	asm := exe.Assembly
	code := asm.Bytes

	stack := vm.stack
	tupleSizes := vm.tupleSizes
	inputSlices := vm.inputSlices

	sync := func() {
		vm.stackFrames[len(vm.stackFrames)-1] = frame
		vm.stack = stack
		vm.tupleSizes = tupleSizes
		vm.inputSlices = inputSlices
	}
	fetch := func() int {
		b := code[frame.CodeIndex]
		frame.CodeIndex++
		return int(b)
	}
	fetch16 := func() int {
		v := int(code[frame.CodeIndex]) | int(code[frame.CodeIndex+1])<<8
		frame.CodeIndex += 2
		return v
	}
	popTuple := func() int {
		last := len(tupleSizes) - 1
		size := tupleSizes[last]
		tupleSizes = tupleSizes[:last]
		return size
	}
	// call enters command index of exe, whose parameters are on the stack
	// above the pending input tuple.
	call := func(callIndex, index int) error {
		if vm.maxFrameDepth > 0 && len(vm.stackFrames) > vm.maxFrameDepth {
			sync()
			return vm.runtimeError(frame, callIndex, "maximum call depth exceeded", nil)
		}
		vm.stackFrames[len(vm.stackFrames)-1] = frame
		def := exe.Assembly.Commands[index]
		inputCount := popTuple()
		stackIndex := len(stack) - def.ParameterCount
		inputSlices = append(inputSlices, inputSlice{
			index:      stackIndex - inputCount,
			length:     inputCount,
			tupleDepth: len(tupleSizes),
		})
		frame = StackFrame{
			CodeIndex:    def.CodeIndex,
			StackIndex:   stackIndex,
			CommandIndex: index,
			Executable:   exe,
		}
		vm.stackFrames = append(vm.stackFrames, frame)
		return nil
	}

	for {
		opcode := op.Code(code[frame.CodeIndex])
		if vm.trace && !opcode.IsDebug() {
			vm.traceInstruction(asm, frame.CodeIndex, stack, tupleSizes)
		}
		frame.CodeIndex++

		switch opcode {
		case op.Halt:
			sync()
			vm.stackFrames = vm.stackFrames[:len(vm.stackFrames)-1]
			return nil
		case op.Return:
			vm.stackFrames = vm.stackFrames[:len(vm.stackFrames)-1]
			frame = vm.stackFrames[len(vm.stackFrames)-1]
			exe = frame.Executable
			asm = exe.Assembly
			code = asm.Bytes
			slice := inputSlices[len(inputSlices)-1]
			inputSlices = inputSlices[:len(inputSlices)-1]
			// Tuples left pending by a return from inside a loop are
			// dropped along with the rest of the callee's stack.
			output := tupleSizes[len(tupleSizes)-1]
			tupleSizes = append(tupleSizes[:slice.tupleDepth], output)
			stack = moveTail(stack, slice.index, output)
		case op.PushEmptyTuple:
			tupleSizes = append(tupleSizes, 0)
		case op.PopTupleKeeping:
			keep := fetch()
			size := popTuple()
			if keep > size {
				for i := size; i < keep; i++ {
					stack = append(stack, value.Null)
				}
			} else {
				stack = truncate(stack, len(stack)-(size-keep))
			}
		case op.MergeTuple:
			size := popTuple()
			tupleSizes[len(tupleSizes)-1] += size
		case op.Pop:
			stack = truncate(stack, len(stack)-fetch())
		case op.PushFalse:
			stack = append(stack, value.NewBool(false))
			tupleSizes = append(tupleSizes, 1)
		case op.PushTrue:
			stack = append(stack, value.NewBool(true))
			tupleSizes = append(tupleSizes, 1)
		case op.PushLiteral:
			stack = append(stack, asm.Literals[fetch16()])
			tupleSizes = append(tupleSizes, 1)
		case op.SetLocal:
			slot := frame.StackIndex + fetch()
			stack[slot] = stack[len(stack)-1]
			stack = truncate(stack, len(stack)-1)
		case op.PushLocal:
			stack = append(stack, stack[frame.StackIndex+fetch()])
			tupleSizes = append(tupleSizes, 1)
		case op.PushInput:
			slice := inputSlices[len(inputSlices)-1]
			stack = append(stack, stack[slice.index:slice.index+slice.length]...)
			tupleSizes = append(tupleSizes, slice.length)
		case op.ExecuteCommand:
			callIndex := frame.CodeIndex - 1
			if err := call(callIndex, fetch16()); err != nil {
				return err
			}
		case op.ExecuteExternalCommand:
			callIndex := frame.CodeIndex - 1
			module := fetch()
			index := fetch16()
			vm.stackFrames[len(vm.stackFrames)-1] = frame
			exe = exe.dependencies[module]
			asm = exe.Assembly
			code = asm.Bytes
			if err := call(callIndex, index); err != nil {
				return err
			}
		case op.ExecuteNativeCommand:
			callIndex := frame.CodeIndex - 1
			index := fetch16()
			def := asm.NativeCommands[asm.NativeInstances[index].DefinitionIndex]
			inputCount := popTuple()
			c := &Context{
				Context:        ctx,
				Stack:          stack,
				InputCount:     inputCount,
				StartIndex:     len(stack) - (inputCount + def.ParameterCount),
				ParameterCount: def.ParameterCount,
			}
			exe.natives[index].Invoke(c)
			stack = c.Stack
			returnCount := len(stack) - (c.StartIndex + inputCount + def.ParameterCount)
			if returnCount < 0 {
				sync()
				return vm.runtimeError(frame, callIndex,
					fmt.Sprintf("native command '%s' corrupted the stack", def.Name), nil)
			}
			tupleSizes = append(tupleSizes, returnCount)
			stack = moveTail(stack, c.StartIndex, returnCount)
			if c.failed {
				sync()
				return vm.runtimeError(frame, callIndex, c.errorMessage, nil)
			}
		case op.JumpBackward:
			offset := fetch16()
			frame.CodeIndex -= offset
		case op.JumpForward:
			offset := fetch16()
			frame.CodeIndex += offset
		case op.IfConditionJump:
			offset := fetch16()
			count := popTuple()
			for count > 0 {
				count--
				v := stack[len(stack)-1]
				stack = truncate(stack, len(stack)-1)
				if !v.IsTruthy() {
					frame.CodeIndex += offset
					stack = truncate(stack, len(stack)-count)
					break
				}
			}
		case op.ForEachConditionJump:
			offset := fetch16()
			count := tupleSizes[len(tupleSizes)-1]
			base := len(stack) - (count + 2)
			next := int(stack[base].Int()) + 1
			if next < count {
				stack[base+1] = stack[base+2+next]
				stack[base] = value.NewInt(int32(next))
			} else {
				frame.CodeIndex += offset
				stack = truncate(stack, len(stack)-count)
				tupleSizes = tupleSizes[:len(tupleSizes)-1]
			}
		case op.DebugHook:
			if vm.debugger != nil {
				sync()
				vm.debugger.OnHook(vm)
			}
		case op.DebugPushDebugFrame:
			vm.debugInfo.PushFrame()
		case op.DebugPopDebugFrame:
			vm.debugInfo.PopFrame()
		case op.DebugPushVariableInfo:
			nameIndex := fetch16()
			slot := fetch()
			name, _ := asm.Literals[nameIndex].Str()
			vm.debugInfo.PushVariable(name, frame.StackIndex+slot)
		case op.DebugPopVariableInfo:
			vm.debugInfo.PopVariables(fetch())
		default:
			vm.logger.Warn().
				Str("assembly", asm.Name).
				Int("offset", frame.CodeIndex-1).
				Uint8("opcode", uint8(opcode)).
				Msg("unknown opcode, halting")
			sync()
			vm.stackFrames = vm.stackFrames[:len(vm.stackFrames)-1]
			return nil
		}
	}
}

// truncate shortens stack to length, releasing the dropped values.
func truncate(stack []value.Value, length int) []value.Value {
	clear(stack[length:])
	return stack[:length]
}

func (vm *VirtualMachine) runtimeError(frame StackFrame, codeIndex int, message string, cause error) error {
	asm := frame.Executable.Assembly
	err := &errz.RuntimeError{
		Message:      message,
		CommandIndex: frame.CommandIndex,
		CommandName:  frame.CommandName(),
		CodeIndex:    codeIndex,
		Location:     asm.LocationAt(codeIndex),
		Cause:        cause,
	}
	vm.logger.Debug().Err(err).Str("assembly", asm.Name).Msg("execution failed")
	return err
}
