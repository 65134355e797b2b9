package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/compiler"
	"github.com/maestro-lang/maestro/op"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, mode compiler.Mode, src string) *bytecode.Assembly {
	t.Helper()
	asm, err := compiler.Compile(&compiler.Config{Mode: mode}, bytecode.Source{URI: "main.mae", Content: src})
	require.NoError(t, err)
	return asm
}

func TestJumpTargets(t *testing.T) {
	asm := compile(t, compiler.Release, "if true { 1; }\nwhile false { }")
	instructions, err := Disassemble(asm)
	require.NoError(t, err)

	var jumps []Instruction
	for _, instr := range instructions {
		if instr.Opcode.IsJump() {
			jumps = append(jumps, instr)
		}
	}
	require.Len(t, jumps, 3)
	require.Equal(t, op.IfConditionJump, jumps[0].Opcode)
	require.Equal(t, 9, jumps[0].Target)
	require.Equal(t, "goto 9", jumps[0].Annotation)
	// while: condition at 9, exit jump past the backward jump
	require.Equal(t, op.IfConditionJump, jumps[1].Opcode)
	require.Equal(t, 16, jumps[1].Target)
	require.Equal(t, op.JumpBackward, jumps[2].Opcode)
	require.Equal(t, 9, jumps[2].Target)
}

// Every jump the compiler emits lands on an instruction boundary.
func TestJumpsLandOnInstructions(t *testing.T) {
	programs := []string{
		"if true { 1; } else { 2; }",
		"if false { } else if true { 3; } else { 4; }",
		"let $x = true; while $x { $x = false; }",
		"forEach $e in 1, 2, 3 { $e; }",
		"command f $a { if $a { return 1; } 2; }\nf true; f false;",
		"forEach $e in input { if $e { 1; } }",
	}
	for _, mode := range []compiler.Mode{compiler.Release, compiler.Debug} {
		for _, src := range programs {
			asm := compile(t, mode, src)
			instructions, err := Disassemble(asm)
			require.NoError(t, err)
			boundaries := map[int]bool{len(asm.Bytes): true}
			for _, instr := range instructions {
				boundaries[instr.Offset] = true
				if instr.Hooked {
					boundaries[instr.Offset-1] = true
				}
			}
			for _, instr := range instructions {
				if instr.Opcode.IsJump() {
					require.True(t, boundaries[instr.Target], "%q: jump at %d lands on %d", src, instr.Offset, instr.Target)
				}
			}
			require.Equal(t, op.Halt, instructions[len(instructions)-1].Opcode)
		}
	}
}

func TestAnnotations(t *testing.T) {
	asm, err := compiler.Compile(
		&compiler.Config{Mode: compiler.Debug},
		bytecode.Source{URI: "main.mae", Content: "external command print 0;\ncommand greet $who { $who | print; }\n\"hi\" | greet \"bob\";"},
	)
	require.NoError(t, err)
	instructions, err := Disassemble(asm)
	require.NoError(t, err)

	byName := map[string][]Instruction{}
	for _, instr := range instructions {
		require.NotEqual(t, op.DebugHook, instr.Opcode)
		byName[instr.Name] = append(byName[instr.Name], instr)
	}
	require.Equal(t, "$who", byName["PUSH_LOCAL"][0].Annotation)
	require.Equal(t, "print", byName["EXECUTE_NATIVE_COMMAND"][0].Annotation)
	require.Equal(t, "greet", byName["EXECUTE_COMMAND"][0].Annotation)
	require.Equal(t, "$who at 0", byName["DEBUG_PUSH_VARIABLE_INFO"][0].Annotation)

	var literals []string
	for _, instr := range byName["PUSH_LITERAL"] {
		literals = append(literals, instr.Annotation)
	}
	require.Equal(t, []string{`"hi"`, `"bob"`}, literals)

	var commands []string
	for _, instr := range instructions {
		if instr.Command != "" {
			commands = append(commands, instr.Command)
		}
	}
	require.Equal(t, []string{bytecode.EntryCommand, "greet"}, commands)
}

func TestReleaseLocalsHaveNoNames(t *testing.T) {
	asm := compile(t, compiler.Release, "let $a = 1; $a;")
	instructions, err := Disassemble(asm)
	require.NoError(t, err)
	for _, instr := range instructions {
		if instr.Opcode == op.PushLocal {
			require.Equal(t, "local_0", instr.Annotation)
			return
		}
	}
	t.Fatal("no PUSH_LOCAL emitted")
}

func TestDisassembleErrors(t *testing.T) {
	asm := bytecode.NewAssembly("broken", false)
	asm.Bytes = []byte{byte(op.PushLiteral), 0}
	_, err := Disassemble(asm)
	require.EqualError(t, err, "truncated PUSH_LITERAL at offset 0")

	asm.Bytes = []byte{byte(op.PushLiteral), 3, 0, byte(op.Halt)}
	_, err = Disassemble(asm)
	require.EqualError(t, err, "literal index out of range: 3")

	asm.Bytes = []byte{200}
	_, err = Disassemble(asm)
	require.EqualError(t, err, "unknown opcode 200 at offset 0")
}

func TestDisassembleAt(t *testing.T) {
	asm := compile(t, compiler.Debug, "1;")
	instr, err := DisassembleAt(asm, 1)
	require.NoError(t, err)
	require.Equal(t, op.PushLiteral, instr.Opcode)
	require.Equal(t, 2, instr.Offset)
	require.True(t, instr.Hooked)
	require.Equal(t, 5, instr.Next())
}

func TestPrint(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = saved }()

	asm := compile(t, compiler.Release, "command f { 1; }\nf;")
	instructions, err := Disassemble(asm)
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(instructions, &buf)
	result := buf.String()

	require.True(t, strings.HasPrefix(result, "+--------+------+------------------+----------+--------+\n"))
	require.Contains(t, result, "| OFFSET | LINE |      OPCODE      | OPERANDS |  INFO  |\n")
	require.Contains(t, result, "|        |      | == main.mae      |          |        |\n")
	require.Contains(t, result, "|        |      | # <entry>        |          |        |\n")
	require.Contains(t, result, "|      0 |    1 | JUMP_FORWARD     |        4 | goto 7 |\n")
	require.Contains(t, result, "|        |      | # f              |          |        |\n")
	require.Contains(t, result, "|      3 |    | | PUSH_LITERAL     |        0 | 1      |\n")
	require.Contains(t, result, "|      7 |    2 | PUSH_EMPTY_TUPLE |          |        |\n")
	require.Contains(t, result, "|      8 |    | | EXECUTE_COMMAND  |        1 | f      |\n")
	require.Contains(t, result, "|     12 |    | | HALT             |          |        |\n")
}
