// Package vm provides a VirtualMachine that executes compiled maestro code.
//
// The machine keeps three parallel stacks. The value stack holds every
// value: command parameters, local variables and the tuples produced by
// expressions. The tuple-size stack records how many of the topmost values
// form each pending tuple. The input-slice stack records, per active call,
// where the tuple piped into that call lives, so `input` can copy it and
// Return can replace it with the command's output.
package vm

import (
	"fmt"
	"sync"

	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/value"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxFrameDepth is the default limit on nested command calls.
	DefaultMaxFrameDepth = 4096

	defaultStackCapacity = 256
)

type VirtualMachine struct {
	stack       []value.Value
	tupleSizes  []int
	inputSlices []inputSlice
	stackFrames []StackFrame

	debugger  Debugger
	debugInfo DebugInfo

	logger        zerolog.Logger
	trace         bool
	maxFrameDepth int

	running  bool
	runMutex sync.Mutex
}

// New creates a new Virtual Machine.
func New(options ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		stack:         make([]value.Value, 0, defaultStackCapacity),
		logger:        zerolog.Nop(),
		maxFrameDepth: DefaultMaxFrameDepth,
	}
	for _, opt := range options {
		opt(vm)
	}
	return vm
}

func (vm *VirtualMachine) start() error {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	if vm.running {
		return fmt.Errorf("vm is already running")
	}
	vm.running = true
	return nil
}

func (vm *VirtualMachine) stop() {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	vm.running = false
}

// reset empties every stack, keeping their storage.
func (vm *VirtualMachine) reset() {
	clear(vm.stack)
	vm.stack = vm.stack[:0]
	vm.tupleSizes = vm.tupleSizes[:0]
	vm.inputSlices = vm.inputSlices[:0]
	clear(vm.stackFrames)
	vm.stackFrames = vm.stackFrames[:0]
	vm.debugInfo.Clear()
}

// Stack returns the value stack. While a debugger hook runs it reflects the
// state before the instruction about to execute. The slice must not be
// modified.
func (vm *VirtualMachine) Stack() []value.Value {
	return vm.stack
}

// Frames returns the active call frames, outermost first. The first frame
// is a sentinel that halts execution once the called command returns.
func (vm *VirtualMachine) Frames() []StackFrame {
	return vm.stackFrames
}

// DebugInfo returns the variable records of debug builds.
func (vm *VirtualMachine) DebugInfo() *DebugInfo {
	return &vm.debugInfo
}

// Location resolves the source position a frame is stopped at. For the top
// frame during a hook this is the instruction about to run.
func (vm *VirtualMachine) Location(frame StackFrame) errz.SourceLocation {
	if frame.Executable == nil {
		return errz.SourceLocation{}
	}
	return frame.Executable.Assembly.LocationAt(frame.CodeIndex)
}

// FrameLocation resolves where frame is executing. The top frame reports
// the next instruction; callers report the call they are waiting on.
func (vm *VirtualMachine) FrameLocation(depth int) errz.SourceLocation {
	if depth < 0 || depth >= len(vm.stackFrames) {
		return errz.SourceLocation{}
	}
	frame := vm.stackFrames[depth]
	if frame.Executable == nil {
		return errz.SourceLocation{}
	}
	if depth == len(vm.stackFrames)-1 {
		return vm.Location(frame)
	}
	// Operand bytes share the source range of their call instruction.
	return frame.Executable.Assembly.LocationAt(frame.CodeIndex - 1)
}
