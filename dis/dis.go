// Package dis supports analysis of maestro bytecode by disassembling it.
// DebugHook prefixes emitted by debug builds are folded into the instruction
// they precede.
package dis

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/internal/table"
	"github.com/maestro-lang/maestro/op"
)

// Instruction represents a single bytecode instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []int
	Annotation string
	Literal    any
	// Target is the destination of a jump, or -1.
	Target int
	// Hooked is set when the instruction was preceded by a DebugHook.
	Hooked bool
	// Command names the command whose body starts at this instruction.
	Command string
	// URI and Line locate the instruction in its source, when known.
	URI  string
	Line int
}

// Next returns the offset of the following instruction.
func (i Instruction) Next() int {
	return i.Offset + op.GetInfo(i.Opcode).Size()
}

type localName struct {
	slot int
	name string
}

// decoder carries the variable names seen so far in debug builds.
type decoder struct {
	asm    *bytecode.Assembly
	locals []localName
	frames []int
}

// Disassemble returns a parsed representation of the assembly's code.
func Disassemble(asm *bytecode.Assembly) ([]Instruction, error) {
	d := &decoder{asm: asm}
	var instructions []Instruction
	for offset := 0; offset < len(asm.Bytes); {
		instr, err := d.decode(offset)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, instr)
		offset = instr.Next()
	}
	return instructions, nil
}

// DisassembleAt decodes the single instruction at offset. Variable names
// are not available when decoding out of sequence.
func DisassembleAt(asm *bytecode.Assembly, offset int) (Instruction, error) {
	d := &decoder{asm: asm}
	return d.decode(offset)
}

func (d *decoder) decode(offset int) (Instruction, error) {
	asm := d.asm
	start := offset
	if offset >= len(asm.Bytes) {
		return Instruction{}, fmt.Errorf("offset %d is outside the code", offset)
	}
	hooked := false
	if op.Code(asm.Bytes[offset]) == op.DebugHook {
		hooked = true
		offset++
		if offset >= len(asm.Bytes) {
			return Instruction{}, fmt.Errorf("dangling %s at offset %d", op.DebugHook, start)
		}
	}
	code := op.Code(asm.Bytes[offset])
	info := op.GetInfo(code)
	if info.Name == "" {
		return Instruction{}, fmt.Errorf("unknown opcode %d at offset %d", code, offset)
	}
	if offset+info.Size() > len(asm.Bytes) {
		return Instruction{}, fmt.Errorf("truncated %s at offset %d", info.Name, offset)
	}

	operands := make([]int, 0, info.OperandCount())
	pos := offset + 1
	for _, width := range info.OperandWidths {
		if width == 2 {
			operands = append(operands, asm.Uint16At(pos))
		} else {
			operands = append(operands, int(asm.Bytes[pos]))
		}
		pos += width
	}

	instr := Instruction{
		Offset:   offset,
		Name:     info.Name,
		Opcode:   code,
		Operands: operands,
		Target:   -1,
		Hooked:   hooked,
	}
	if err := d.annotate(&instr); err != nil {
		return Instruction{}, err
	}
	for _, def := range asm.Commands {
		if def.CodeIndex >= start && def.CodeIndex <= offset {
			instr.Command = def.Name
			break
		}
	}
	if loc := asm.LocationAt(offset); !loc.IsZero() {
		instr.URI = loc.URI
		instr.Line = loc.Line
	}
	return instr, nil
}

func (d *decoder) annotate(instr *Instruction) error {
	asm := d.asm
	switch instr.Opcode {
	case op.PushLiteral:
		index := instr.Operands[0]
		if index >= len(asm.Literals) {
			return fmt.Errorf("literal index out of range: %d", index)
		}
		lit := asm.Literals[index]
		instr.Literal = lit.Interface()
		if s, ok := lit.Str(); ok {
			instr.Annotation = strconv.Quote(s)
		} else {
			instr.Annotation = lit.String()
		}
	case op.PushLocal, op.SetLocal:
		instr.Annotation = d.localName(instr.Operands[0])
	case op.ExecuteCommand:
		index := instr.Operands[0]
		if index >= len(asm.Commands) {
			return fmt.Errorf("command index out of range: %d", index)
		}
		instr.Annotation = asm.Commands[index].Name
	case op.ExecuteNativeCommand:
		index := instr.Operands[0]
		if index >= len(asm.NativeInstances) {
			return fmt.Errorf("native call site index out of range: %d", index)
		}
		def := asm.NativeInstances[index].DefinitionIndex
		if def >= len(asm.NativeCommands) {
			return fmt.Errorf("native command index out of range: %d", def)
		}
		instr.Annotation = asm.NativeCommands[def].Name
	case op.ExecuteExternalCommand:
		module := instr.Operands[0]
		if module >= len(asm.Dependencies) {
			return fmt.Errorf("module index out of range: %d", module)
		}
		instr.Annotation = fmt.Sprintf("%s#%d", asm.Dependencies[module].Name, instr.Operands[1])
	case op.JumpBackward:
		instr.Target = instr.Next() - instr.Operands[0]
		instr.Annotation = fmt.Sprintf("goto %d", instr.Target)
	case op.JumpForward, op.IfConditionJump, op.ForEachConditionJump:
		instr.Target = instr.Next() + instr.Operands[0]
		instr.Annotation = fmt.Sprintf("goto %d", instr.Target)
	case op.DebugPushDebugFrame:
		d.frames = append(d.frames, len(d.locals))
	case op.DebugPopDebugFrame:
		if n := len(d.frames); n > 0 {
			d.locals = d.locals[:d.frames[n-1]]
			d.frames = d.frames[:n-1]
		}
	case op.DebugPushVariableInfo:
		index := instr.Operands[0]
		if index >= len(asm.Literals) {
			return fmt.Errorf("literal index out of range: %d", index)
		}
		name, _ := asm.Literals[index].Str()
		d.locals = append(d.locals, localName{slot: instr.Operands[1], name: name})
		instr.Annotation = fmt.Sprintf("%s at %d", name, instr.Operands[1])
	case op.DebugPopVariableInfo:
		n := instr.Operands[0]
		if n > len(d.locals) {
			n = len(d.locals)
		}
		d.locals = d.locals[:len(d.locals)-n]
	}
	return nil
}

func (d *decoder) localName(slot int) string {
	for i := len(d.locals) - 1; i >= 0; i-- {
		if d.locals[i].slot == slot {
			return d.locals[i].name
		}
	}
	return fmt.Sprintf("local_%d", slot)
}

// Print a string representation of the given instructions to the given
// writer. Rows are grouped under the source file and command they belong to.
// Colors follow color.NoColor.
func Print(instructions []Instruction, writer io.Writer) {
	bold := color.New(color.Bold).SprintFunc()
	var lines [][]string
	uri := ""
	lastLine := -1
	for _, instr := range instructions {
		if instr.URI != "" && instr.URI != uri {
			uri = instr.URI
			lastLine = -1
			lines = append(lines, []string{"", "", color.BlueString("== %s", uri), "", ""})
		}
		if instr.Command != "" {
			lines = append(lines, []string{"", "", color.MagentaString("# %s", instr.Command), "", ""})
		}
		line := ""
		switch {
		case instr.Line == 0:
		case instr.Line == lastLine:
			line = "|"
		default:
			line = strconv.Itoa(instr.Line)
			lastLine = instr.Line
		}
		values := []string{
			strconv.Itoa(instr.Offset),
			line,
			bold(instr.Name),
			formatOperands(instr.Operands),
		}
		switch c := instr.Literal.(type) {
		case nil:
			if instr.Annotation != "" {
				values = append(values, color.CyanString("%s", instr.Annotation))
			} else {
				values = append(values, "")
			}
		case string:
			if len(c) > 80 {
				c = c[:77] + "..."
			}
			values = append(values, color.GreenString("%q", c))
		case int32, float32:
			values = append(values, color.YellowString("%s", instr.Annotation))
		default:
			values = append(values, bold(instr.Annotation))
		}
		lines = append(lines, values)
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "LINE", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

func formatOperands(operands []int) string {
	var sb strings.Builder
	for i, o := range operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(o))
	}
	return sb.String()
}
