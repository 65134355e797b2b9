package compiler

import (
	"math"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/token"
	"github.com/maestro-lang/maestro/value"
)

const (
	// MaxLocals is the number of variable slots addressable by one command.
	MaxLocals = math.MaxUint8 + 1

	// MaxParameters is the largest parameter count a command may declare.
	MaxParameters = math.MaxUint8

	maxJump     = math.MaxUint16
	maxOperand  = math.MaxUint16
	maxModules  = math.MaxUint8 + 1
	maxDebugArg = math.MaxUint8
)

// emitByte appends b, attributing it to the most recently consumed token.
func (c *Compiler) emitByte(b byte) {
	c.assembly.Bytes = append(c.assembly.Bytes, b)
	c.assembly.SourceSlices = append(c.assembly.SourceSlices, c.previous.Slice)
}

func (c *Compiler) emitUint16(v int) {
	c.emitByte(byte(v))
	c.emitByte(byte(v >> 8))
}

// emitInstruction emits an opcode. Debug builds prefix every executable
// opcode with a DebugHook so an attached debugger can stop before it.
func (c *Compiler) emitInstruction(code op.Code) {
	if c.mode == Debug && code < op.DebugHook {
		c.emitByte(byte(op.DebugHook))
	}
	c.emitByte(byte(code))
}

// emitDebugInstruction emits code only in debug builds.
func (c *Compiler) emitDebugInstruction(code op.Code) {
	if c.mode == Debug {
		c.emitByte(byte(code))
	}
}

func (c *Compiler) emitKeep(count int) {
	if count > math.MaxUint8 {
		c.addSoftError(c.previous.Slice, "too many values in tuple")
		count = math.MaxUint8
	}
	c.emitInstruction(op.PopTupleKeeping)
	c.emitByte(byte(count))
}

func (c *Compiler) emitPop(count int) {
	for count > 0 {
		n := count
		if n > math.MaxUint8 {
			n = math.MaxUint8
		}
		c.emitInstruction(op.Pop)
		c.emitByte(byte(n))
		count -= n
	}
}

func (c *Compiler) emitPushLiteral(v value.Value) {
	index := len(c.assembly.Literals)
	if index > maxOperand {
		c.addSoftError(c.previous.Slice, "too many literals")
		index = 0
	}
	c.assembly.Literals = append(c.assembly.Literals, v)
	c.emitInstruction(op.PushLiteral)
	c.emitUint16(index)
}

// emitVariableInstruction emits a SetLocal or PushLocal addressing the
// variable relative to the frame of the enclosing command. Variables that
// belong to an outer command are not addressable and emit nothing.
func (c *Compiler) emitVariableInstruction(code op.Code, variableIndex int) {
	local := variableIndex - c.commandScope().variablesStart
	if local < 0 {
		return
	}
	if local > math.MaxUint8 {
		local = math.MaxUint8
	}
	c.emitInstruction(code)
	c.emitByte(byte(local))
}

func (c *Compiler) emitExecuteCommand(index int) {
	c.emitInstruction(op.ExecuteCommand)
	c.emitUint16(index)
}

func (c *Compiler) emitExecuteExternalCommand(moduleIndex, commandIndex int) {
	c.emitInstruction(op.ExecuteExternalCommand)
	c.emitByte(byte(moduleIndex))
	c.emitUint16(commandIndex)
}

// emitExecuteNativeCommand records a new call site for the native
// definition and emits a call to it.
func (c *Compiler) emitExecuteNativeCommand(definitionIndex int, slice token.Slice) {
	index := len(c.assembly.NativeInstances)
	if index > maxOperand {
		c.addSoftError(slice, "too many native command calls")
		index = 0
	}
	c.assembly.NativeInstances = append(c.assembly.NativeInstances, bytecode.NativeInstance{
		DefinitionIndex: definitionIndex,
		Slice:           slice,
	})
	c.emitInstruction(op.ExecuteNativeCommand)
	c.emitUint16(index)
}

// beginEmitBackwardJump marks the target of a backward jump.
func (c *Compiler) beginEmitBackwardJump() int {
	return len(c.assembly.Bytes)
}

// endEmitBackwardJump emits a jump back to the position returned by
// beginEmitBackwardJump.
func (c *Compiler) endEmitBackwardJump(code op.Code, jumpIndex int) {
	c.emitInstruction(code)
	offset := len(c.assembly.Bytes) - jumpIndex + 2
	if offset > maxJump {
		c.addSoftError(c.previous.Slice, "too much code to jump over")
		offset = 0
	}
	c.emitUint16(offset)
}

// beginEmitForwardJump emits a jump with a placeholder distance and returns
// the position of the placeholder.
func (c *Compiler) beginEmitForwardJump(code op.Code) int {
	c.emitInstruction(code)
	c.emitUint16(0)
	return len(c.assembly.Bytes) - 2
}

// endEmitForwardJump patches the placeholder at jumpIndex so the jump lands
// on the next instruction to be emitted.
func (c *Compiler) endEmitForwardJump(jumpIndex int) {
	offset := len(c.assembly.Bytes) - jumpIndex - 2
	if offset > maxJump {
		c.addSoftError(c.previous.Slice, "too much code to jump over")
		offset = 0
	}
	c.assembly.Bytes[jumpIndex] = byte(offset)
	c.assembly.Bytes[jumpIndex+1] = byte(offset >> 8)
}

// emitDebugPushVariableInfo records the name of the variable about to be
// declared so debuggers can display it.
func (c *Compiler) emitDebugPushVariableInfo(name string) {
	if c.mode != Debug {
		return
	}
	slot := len(c.variables) - c.commandScope().variablesStart
	if slot > maxDebugArg {
		slot = maxDebugArg
	}
	index := len(c.assembly.Literals)
	if index > maxOperand {
		c.addSoftError(c.previous.Slice, "too many literals")
		index = 0
	}
	c.assembly.Literals = append(c.assembly.Literals, value.NewString(name))
	c.emitDebugInstruction(op.DebugPushVariableInfo)
	c.emitUint16(index)
	c.emitByte(byte(slot))
}

func (c *Compiler) emitDebugPopVariableInfo(count int) {
	if c.mode != Debug || count == 0 {
		return
	}
	if count > maxDebugArg {
		count = maxDebugArg
	}
	c.emitDebugInstruction(op.DebugPopVariableInfo)
	c.emitByte(byte(count))
}
