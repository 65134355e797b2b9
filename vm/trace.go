package vm

import (
	"strings"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/dis"
	"github.com/maestro-lang/maestro/value"
)

func (vm *VirtualMachine) traceInstruction(asm *bytecode.Assembly, offset int, stack []value.Value, tupleSizes []int) {
	event := vm.logger.Trace()
	if !event.Enabled() {
		return
	}
	instr, err := dis.DisassembleAt(asm, offset)
	if err != nil {
		event.Err(err).Int("offset", offset).Msg("trace")
		return
	}
	event.
		Str("assembly", asm.Name).
		Int("offset", offset).
		Str("op", instr.Name).
		Ints("operands", instr.Operands).
		Str("info", instr.Annotation).
		Str("stack", formatStack(stack)).
		Ints("tuples", tupleSizes).
		Msg("step")
}

func formatStack(stack []value.Value) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range stack {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
