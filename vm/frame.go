package vm

import (
	"github.com/maestro-lang/maestro/value"
)

// StackFrame is one active command call.
type StackFrame struct {
	// CodeIndex is the next instruction to execute. For frames below the top
	// it is the resume point after the call returns.
	CodeIndex int
	// StackIndex is where the command's parameters begin on the stack.
	// Local variable slots are relative to it.
	StackIndex   int
	CommandIndex int
	// Executable owns the code the frame runs. It differs from the caller's
	// after a cross-module call.
	Executable *Executable
}

// CommandName returns the name of the command running in the frame.
func (f StackFrame) CommandName() string {
	if f.Executable == nil {
		return ""
	}
	commands := f.Executable.Assembly.Commands
	if f.CommandIndex < 0 || f.CommandIndex >= len(commands) {
		return ""
	}
	return commands[f.CommandIndex].Name
}

// inputSlice is the stack range holding the tuple piped into a call.
// tupleDepth is the height of the tuple-size stack once the input tuple was
// taken from it.
type inputSlice struct {
	index      int
	length     int
	tupleDepth int
}

// moveTail moves the last count values of stack down to toIndex and
// truncates everything above them.
func moveTail(stack []value.Value, toIndex, count int) []value.Value {
	from := len(stack) - count
	if from != toIndex {
		copy(stack[toIndex:], stack[from:])
		clear(stack[toIndex+count:])
	}
	return stack[:toIndex+count]
}
