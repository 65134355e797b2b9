package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/value"
	"github.com/stretchr/testify/require"
)

type natives map[string]int

func (n natives) LookupNative(name string) (int, bool) {
	count, ok := n[name]
	return count, ok
}

type sources map[string]string

func (s sources) LoadSource(uri string) (string, error) {
	if content, ok := s[uri]; ok {
		return content, nil
	}
	return "", fmt.Errorf("no such file")
}

func compile(t *testing.T, cfg *Config, src string) *bytecode.Assembly {
	t.Helper()
	asm, err := Compile(cfg, bytecode.Source{URI: "main.mae", Content: src})
	require.NoError(t, err)
	return asm
}

func compileErrors(t *testing.T, cfg *Config, src string) []*errz.CompileError {
	t.Helper()
	_, err := Compile(cfg, bytecode.Source{URI: "main.mae", Content: src})
	require.Error(t, err)
	errs := errz.CompileErrors(err)
	require.NotEmpty(t, errs)
	return errs
}

func bytes(codes ...any) []byte {
	var result []byte
	for _, c := range codes {
		switch c := c.(type) {
		case op.Code:
			result = append(result, byte(c))
		case int:
			result = append(result, byte(c))
		}
	}
	return result
}

func TestLiteralStatement(t *testing.T) {
	asm := compile(t, nil, "0;")
	require.Equal(t, bytes(op.PushLiteral, 0, 0, op.Return, op.Halt), asm.Bytes)
	require.Equal(t, []value.Value{value.NewInt(0)}, asm.Literals)
	require.Len(t, asm.Commands, 1)
	require.Equal(t, bytecode.EntryCommand, asm.Commands[0].Name)
	require.Len(t, asm.SourceSlices, len(asm.Bytes))
}

func TestTupleStatement(t *testing.T) {
	asm := compile(t, nil, "1, true;")
	require.Equal(t, bytes(op.PushLiteral, 0, 0, op.PushTrue, op.MergeTuple, op.Return, op.Halt), asm.Bytes)
}

func TestOnlyTrailingTupleIsKept(t *testing.T) {
	asm := compile(t, nil, "1; 2;")
	require.Equal(t, bytes(
		op.PushLiteral, 0, 0,
		op.PopTupleKeeping, 0,
		op.PushLiteral, 1, 0,
		op.Return,
		op.Halt,
	), asm.Bytes)
}

func TestEmptyProgramReturnsEmptyTuple(t *testing.T) {
	asm := compile(t, nil, "# nothing here\n")
	require.Equal(t, bytes(op.PushEmptyTuple, op.Return, op.Halt), asm.Bytes)
}

func TestIfStatement(t *testing.T) {
	asm := compile(t, nil, "if true { 1; }")
	require.Equal(t, bytes(
		op.PushTrue,
		op.IfConditionJump, 5, 0,
		op.PushLiteral, 0, 0,
		op.PopTupleKeeping, 0,
		op.PushEmptyTuple,
		op.Return,
		op.Halt,
	), asm.Bytes)
}

func TestCommandDeclaration(t *testing.T) {
	asm := compile(t, nil, "command f { 1; }\nf;")
	require.Equal(t, bytes(
		op.JumpForward, 4, 0,
		op.PushLiteral, 0, 0,
		op.Return,
		op.PushEmptyTuple,
		op.ExecuteCommand, 1, 0,
		op.Return,
		op.Halt,
	), asm.Bytes)
	require.Equal(t, bytecode.CommandDefinition{Name: "f", CodeIndex: 3}, asm.Commands[1])
}

func TestCommandArguments(t *testing.T) {
	asm := compile(t, nil, "command pair $a $b { $b, $a; }\n7 | pair 1 2;")
	require.Equal(t, 2, asm.Commands[1].ParameterCount)
	require.Equal(t, bytes(
		op.JumpForward, 6, 0,
		op.PushLocal, 1,
		op.PushLocal, 0,
		op.MergeTuple,
		op.Return,
		op.PushLiteral, 0, 0,
		op.PushLiteral, 1, 0,
		op.PopTupleKeeping, 1,
		op.PushLiteral, 2, 0,
		op.PopTupleKeeping, 1,
		op.ExecuteCommand, 1, 0,
		op.Return,
		op.Halt,
	), asm.Bytes)
}

func TestRecursiveCommandResolves(t *testing.T) {
	asm := compile(t, nil, "command loop { loop; }")
	require.Equal(t, bytes(
		op.JumpForward, 5, 0,
		op.PushEmptyTuple,
		op.ExecuteCommand, 1, 0,
		op.Return,
		op.PushEmptyTuple,
		op.Return,
		op.Halt,
	), asm.Bytes)
}

func TestDebugModeInstrumentation(t *testing.T) {
	asm := compile(t, &Config{Mode: Debug}, "1;")
	require.True(t, asm.Debug)
	require.Equal(t, bytes(
		op.DebugPushDebugFrame,
		op.DebugHook, op.PushLiteral, 0, 0,
		op.DebugPopDebugFrame,
		op.DebugHook, op.Return,
		op.DebugHook, op.Halt,
	), asm.Bytes)
}

func TestDebugVariableInfo(t *testing.T) {
	asm := compile(t, &Config{Mode: Debug}, "let $a = 1;")
	require.Equal(t, bytes(
		op.DebugPushDebugFrame,
		op.DebugHook, op.PushLiteral, 0, 0,
		op.DebugHook, op.PopTupleKeeping, 1,
		op.DebugPushVariableInfo, 1, 0, 0,
		op.DebugHook, op.PushEmptyTuple,
		op.DebugPopDebugFrame,
		op.DebugHook, op.Return,
		op.DebugHook, op.Halt,
	), asm.Bytes)
	name, ok := asm.Literals[1].Str()
	require.True(t, ok)
	require.Equal(t, "$a", name)
}

func TestBlockPopsVariables(t *testing.T) {
	asm := compile(t, nil, "{ let $a, $b = 1, 2; }")
	require.Equal(t, bytes(
		op.PushLiteral, 0, 0,
		op.PushLiteral, 1, 0,
		op.MergeTuple,
		op.PopTupleKeeping, 2,
		op.Pop, 2,
		op.PushEmptyTuple,
		op.Return,
		op.Halt,
	), asm.Bytes)
}

func TestAssignment(t *testing.T) {
	asm := compile(t, nil, "let $a = 1;\n$a = 2;")
	require.Equal(t, bytes(
		op.PushLiteral, 0, 0,
		op.PopTupleKeeping, 1,
		op.PushLiteral, 1, 0,
		op.PopTupleKeeping, 1,
		op.SetLocal, 0,
		op.PushEmptyTuple,
		op.Return,
		op.Halt,
	), asm.Bytes)
}

func TestForEachLowering(t *testing.T) {
	asm := compile(t, nil, "forEach $e in input { $e; }")
	require.Equal(t, bytes(
		op.PushLiteral, 0, 0,
		op.PushFalse,
		op.MergeTuple,
		op.PopTupleKeeping, 2,
		op.PushInput,
		op.ForEachConditionJump, 7, 0,
		op.PushLocal, 1,
		op.PopTupleKeeping, 0,
		op.JumpBackward, 10, 0,
		op.Pop, 2,
		op.PushEmptyTuple,
		op.Return,
		op.Halt,
	), asm.Bytes)
	require.Equal(t, value.NewInt(-1), asm.Literals[0])
}

func TestWhileLowering(t *testing.T) {
	asm := compile(t, nil, "while false { }")
	require.Equal(t, bytes(
		op.PushFalse,
		op.IfConditionJump, 3, 0,
		op.JumpBackward, 7, 0,
		op.PushEmptyTuple,
		op.Return,
		op.Halt,
	), asm.Bytes)
}

func TestExternalCommand(t *testing.T) {
	cfg := &Config{Natives: natives{"bypass": 1}}
	asm := compile(t, cfg, "external command bypass 1;\n1, false | bypass bypass 0;")
	require.Equal(t, []bytecode.NativeCommandDefinition{{Name: "bypass", ParameterCount: 1}}, asm.NativeCommands)
	require.Len(t, asm.NativeInstances, 2)
	require.Equal(t, bytes(
		op.PushLiteral, 0, 0,
		op.PushFalse,
		op.MergeTuple,
		op.PushEmptyTuple,
		op.PushLiteral, 1, 0,
		op.PopTupleKeeping, 1,
		op.ExecuteNativeCommand, 0, 0,
		op.PopTupleKeeping, 1,
		op.ExecuteNativeCommand, 1, 0,
		op.Return,
		op.Halt,
	), asm.Bytes)
	loc := asm.LocationOf(0, asm.NativeInstances[1].Slice)
	require.Equal(t, 2, loc.Line)
	require.Equal(t, 12, loc.Column)
}

func TestNativeCallSitesAcrossCommands(t *testing.T) {
	cfg := &Config{Natives: natives{"bypass": 1}}
	asm := compile(t, cfg, "external command bypass 1;\ncommand f { bypass 1; }\nbypass 2;")
	require.Equal(t, []bytecode.CommandDefinition{
		{Name: bytecode.EntryCommand, CodeIndex: 0},
		{Name: "f", CodeIndex: 3},
	}, asm.Commands)
	require.Len(t, asm.NativeInstances, 2)
	for i, line := range []int{2, 3} {
		require.Equal(t, 0, asm.NativeInstances[i].DefinitionIndex)
		require.Equal(t, line, asm.LocationOf(0, asm.NativeInstances[i].Slice).Line)
	}
}

func TestValidStatements(t *testing.T) {
	cfg := &Config{Natives: natives{"bypass": 1}}
	tests := []string{
		"0;",
		"+0;",
		"-0;",
		"1.05;",
		"-1.05;",
		"true;",
		"false;",
		"null;",
		`"string";`,
		`99, true, "string";`,
		"(false);",
		`(99, true, "string");`,
		"(((false)));",
		"bypass 0;",
		"1, false | bypass 0;",
		"1, false | bypass 0 | bypass 1;",
		`1, false | bypass ("string" | bypass 1);`,
		"1, false | bypass bypass bypass 0;",
		"if true { } else if false { } else { }",
		"let $x = 1; while $x { $x = false; }",
		"command a $x { return $x; } a 1;",
		"return;",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			compile(t, cfg, "external command bypass 1;\n"+src)
		})
	}
}

func TestInvalidStatements(t *testing.T) {
	cfg := &Config{Natives: natives{"bypass": 1}}
	tests := []string{
		"0",
		"1 false | bypass 0;",
		"(0;",
		"0);",
		")0;",
		"(0;);",
		"bypass;",
		"| bypass 0;",
		"let 1 = 2;",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			compileErrors(t, cfg, "external command bypass 1;\n"+src)
		})
	}
}

func TestCompileErrorMessages(t *testing.T) {
	tests := []struct {
		input string
		msg   string
		line  int
		col   int
	}{
		{"0", "expected ';' after expression, found end of file", 1, 2},
		{"let $abc = 1;\n$abd;", "undefined variable $abd; did you mean '$abc'?", 2, 1},
		{"printt 1;", "unknown command 'printt'", 1, 1},
		{"command a { }\ncommand a { }", "command 'a' is already defined", 2, 9},
		{"if true { command b { } }", "command declaration is only allowed at the top level", 1, 11},
		{"forEach $e in 1 { let $x = 1; }", "cannot declare $x inside a forEach body", 1, 23},
		{"forEach $e in 1 { forEach $f in 2 { } }", "cannot nest forEach inside a forEach body", 1, 27},
		{"let $a = 1; let $a = 2;", "variable $a is already declared in this scope", 1, 17},
		{"99999999999;", "integer literal 99999999999 is out of range", 1, 1},
		{`"open`, "unterminated string literal", 1, 1},
		{`import "x";`, "cannot import 'x': no modules are available", 1, 8},
		{`include "x";`, "cannot include 'x': no source loader configured", 1, 9},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			errs := compileErrors(t, nil, tt.input)
			require.Equal(t, tt.msg, errs[0].Message)
			require.Equal(t, tt.line, errs[0].Location.Line)
			require.Equal(t, tt.col, errs[0].Location.Column)
			require.Equal(t, "main.mae", errs[0].Location.URI)
		})
	}
}

func TestErrorRecoveryReportsEveryStatement(t *testing.T) {
	errs := compileErrors(t, nil, "$a;\n$b;\n)\n$c;")
	var messages []string
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	require.Equal(t, []string{
		"undefined variable $a",
		"undefined variable $b",
		"expected expression, found ')'",
		"undefined variable $c",
	}, messages)
}

func TestNativeValidation(t *testing.T) {
	cfg := &Config{Natives: natives{"print": 0}}
	errs := compileErrors(t, cfg, "external command print 1;")
	require.Equal(t, "native command 'print' takes 0 parameters, declared with 1", errs[0].Message)
	errs = compileErrors(t, cfg, "external command nope 1;")
	require.Equal(t, "no native command named 'nope' is registered", errs[0].Message)
}

func TestJumpOverflow(t *testing.T) {
	src := "if true { " + strings.Repeat("1;", 13200) + " }"
	errs := compileErrors(t, nil, src)
	require.Equal(t, "too much code to jump over", errs[0].Message)

	asm, _ := Compile(nil, bytecode.Source{URI: "main.mae", Content: src})
	require.Equal(t, byte(op.IfConditionJump), asm.Bytes[1])
	require.Equal(t, []byte{0, 0}, asm.Bytes[2:4])
}

func TestImport(t *testing.T) {
	lib := compile(t, &Config{Name: "lib"}, "command hidden { }\nexport command twice $x { $x, $x; }")
	modules := bytecode.Modules{"lib": lib}

	asm := compile(t, &Config{Modules: modules}, `import "lib"; twice 3;`)
	require.Equal(t, []bytecode.Dependency{{Name: "lib", ID: lib.ID}}, asm.Dependencies)
	require.Equal(t, bytes(
		op.PushEmptyTuple,
		op.PushLiteral, 0, 0,
		op.PopTupleKeeping, 1,
		op.ExecuteExternalCommand, 0, 2, 0,
		op.Return,
		op.Halt,
	), asm.Bytes)

	errs := compileErrors(t, &Config{Modules: modules}, `import "lib"; hidden;`)
	require.Equal(t, "unknown command 'hidden'", errs[0].Message)
}

func TestInclude(t *testing.T) {
	loader := sources{"lib/util.mae": `command shout { "hi"; }`}
	asm, err := Compile(&Config{Sources: loader},
		bytecode.Source{URI: "lib/main.mae", Content: "include \"util.mae\";\nshout;"})
	require.NoError(t, err)
	require.Len(t, asm.Sources, 2)
	require.Equal(t, "lib/util.mae", asm.Sources[1].URI)

	index, ok := asm.FindCommand("shout")
	require.True(t, ok)
	require.Equal(t, 1, asm.SourceIndexAt(asm.Commands[index].CodeIndex))

	callSite := len(asm.Bytes) - 5
	require.Equal(t, byte(op.ExecuteCommand), asm.Bytes[callSite])
	require.Equal(t, 0, asm.SourceIndexAt(callSite))
	loc := asm.LocationAt(callSite)
	require.Equal(t, "lib/main.mae", loc.URI)
	require.Equal(t, 2, loc.Line)
}

func TestIncludeCycle(t *testing.T) {
	loader := sources{"a.mae": `include "main.mae";`}
	errs := compileErrors(t, &Config{Sources: loader}, `include "a.mae";`)
	require.Equal(t, "include cycle detected for 'main.mae'", errs[0].Message)
	require.Equal(t, "a.mae", errs[0].Location.URI)
}

func TestLibraryUnits(t *testing.T) {
	asm, err := Compile(nil,
		bytecode.Source{URI: "main.mae", Content: "greet;"},
		bytecode.Source{URI: "greet.mae", Content: `command greet { "hello"; }`})
	require.NoError(t, err)
	require.Len(t, asm.Sources, 2)
	_, ok := asm.FindCommand("greet")
	require.True(t, ok)
	require.Equal(t, byte(op.Halt), asm.Bytes[len(asm.Bytes)-1])
	require.NoError(t, asm.Validate())
}

func TestSuggest(t *testing.T) {
	require.Equal(t, "did you mean 'print'?", suggest("prnt", []string{"print", "bypass"}))
	require.Equal(t, "", suggest("zzz", []string{"print"}))
	require.Equal(t, "did you mean one of: 'abd', 'abe'?", suggest("abc", []string{"abe", "abd", "xyz"}))
	require.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestHaltLocatedAtProgramEnd(t *testing.T) {
	for _, mode := range []Mode{Release, Debug} {
		asm, err := Compile(&Config{Mode: mode, Natives: natives{"n": 0}},
			bytecode.Source{URI: "main.mae", Content: "1;\n\nn;"},
			bytecode.Source{URI: "prelude.mae", Content: "external command n 0;"})
		require.NoError(t, err)
		last := len(asm.Bytes) - 1
		require.Equal(t, op.Halt, op.Code(asm.Bytes[last]))
		loc := asm.LocationAt(last)
		require.Equal(t, "main.mae", loc.URI)
		require.Equal(t, 3, loc.Line)
		if mode == Debug {
			require.Equal(t, op.DebugHook, op.Code(asm.Bytes[last-1]))
			require.Equal(t, 3, asm.LocationAt(last-1).Line)
		}
	}
}
