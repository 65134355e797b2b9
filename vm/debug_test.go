package vm

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/compiler"
	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/op"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type hookState struct {
	opcode    op.Code
	frames    int
	tuples    int
	stack     int
	variables [][]VariableInfo
	location  errz.SourceLocation
	caller    errz.SourceLocation
}

type recorder struct {
	begins    int
	ends      int
	hooks     []hookState
	endTuples []int
	endStack  int
}

func (r *recorder) OnBegin(vm *VirtualMachine, asm *bytecode.Assembly) {
	r.begins++
}

func (r *recorder) OnEnd(vm *VirtualMachine, asm *bytecode.Assembly) {
	r.ends++
	r.endTuples = append([]int(nil), vm.tupleSizes...)
	r.endStack = len(vm.Stack())
}

func (r *recorder) OnHook(vm *VirtualMachine) {
	frames := vm.Frames()
	top := frames[len(frames)-1]
	state := hookState{
		opcode:   op.Code(top.Executable.Assembly.Bytes[top.CodeIndex]),
		frames:   len(frames),
		tuples:   len(vm.tupleSizes),
		stack:    len(vm.Stack()),
		location: vm.FrameLocation(len(frames) - 1),
		caller:   vm.FrameLocation(len(frames) - 2),
	}
	info := vm.DebugInfo()
	for depth := range info.Frames {
		state.variables = append(state.variables, append([]VariableInfo(nil), info.FrameVariables(depth)...))
	}
	r.hooks = append(r.hooks, state)
}

func runDebug(t *testing.T, mode compiler.Mode, src string) *recorder {
	t.Helper()
	exe := build(t, mode, src)
	rec := &recorder{}
	_, err := New(WithDebugger(rec)).Execute(context.Background(), exe, bytecode.EntryCommand, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rec.begins)
	require.Equal(t, 1, rec.ends)
	return rec
}

func TestDebuggerVariables(t *testing.T) {
	rec := runDebug(t, compiler.Debug, "let $a = 1;\ncommand f $p { $p; }\nf 2;")
	require.NotEmpty(t, rec.hooks)

	var inner *hookState
	for i := range rec.hooks {
		if rec.hooks[i].frames == 3 && rec.hooks[i].opcode == op.PushLocal {
			inner = &rec.hooks[i]
			break
		}
	}
	require.NotNil(t, inner)
	require.Equal(t, [][]VariableInfo{
		{{Name: "$a", StackIndex: 0}},
		{{Name: "$p", StackIndex: 1}},
	}, inner.variables)
	require.Equal(t, 2, inner.location.Line)
	require.Equal(t, 16, inner.location.Column)
	require.Equal(t, 3, inner.caller.Line)
	require.Equal(t, 1, inner.caller.Column)

	last := rec.hooks[len(rec.hooks)-1]
	require.Equal(t, op.Return, last.opcode)
	require.Empty(t, last.variables)
}

func TestDebuggerReleaseBuildHasNoHooks(t *testing.T) {
	rec := runDebug(t, compiler.Release, "let $a = 1;\n$a;")
	require.Empty(t, rec.hooks)
}

func TestCallsKeepTupleStackBalanced(t *testing.T) {
	for _, src := range []string{
		"command c { input; }\n1, 2 | c;",
		"command c { forEach $e in input { return $e, $e; } }\n1, 2 | c;",
		"command c $x { if $x { return 1; } 2; }\nc true, c false;",
	} {
		rec := runDebug(t, compiler.Debug, src)
		checked := 0
		for i, call := range rec.hooks {
			if call.opcode != op.ExecuteCommand {
				continue
			}
			// The next hook back in the caller sees the input tuple
			// replaced by the output tuple.
			for _, after := range rec.hooks[i+1:] {
				if after.frames == call.frames {
					require.Equal(t, call.tuples, after.tuples, src)
					checked++
					break
				}
			}
		}
		require.NotZero(t, checked, src)
	}
}

func TestEntryLeavesOnlyItsOutputTuple(t *testing.T) {
	input := ints(7, 8, 9)
	for _, mode := range []compiler.Mode{compiler.Release, compiler.Debug} {
		for _, tt := range []struct {
			command string
			src     string
			output  int
		}{
			{bytecode.EntryCommand, "command dup { input, input; }\ninput | dup;", 6},
			{bytecode.EntryCommand, "let $a = 1;", 0},
			{"pair", "command pair { input, 1; }", 4},
		} {
			rec := &recorder{}
			result, err := New(WithDebugger(rec)).Execute(context.Background(), build(t, mode, tt.src), tt.command, input)
			require.NoError(t, err)
			require.Len(t, result, tt.output)
			require.Equal(t, []int{tt.output}, rec.endTuples, tt.src)
			require.Equal(t, tt.output, rec.endStack, tt.src)
		}
	}
}

func TestDebugFramesFollowCalls(t *testing.T) {
	rec := runDebug(t, compiler.Debug, "command f { 1; }\nf;\nf;")
	for _, h := range rec.hooks {
		// One debug frame per command frame, the sentinel excluded. A
		// command's debug frame is gone by the time it returns.
		expected := h.frames - 1
		if h.opcode == op.Return {
			expected--
		}
		require.Len(t, h.variables, expected)
	}
}

func TestTraceLogsInstructions(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
	exe := build(t, compiler.Release, "1, true;")
	_, err := New(WithLogger(logger), WithTrace(true)).Execute(context.Background(), exe, bytecode.EntryCommand, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var ops []string
	for _, line := range lines {
		if strings.Contains(line, `"message":"step"`) {
			ops = append(ops, line)
		}
	}
	require.Len(t, ops, 5)
	require.Contains(t, ops[0], `"op":"PUSH_LITERAL"`)
	require.Contains(t, ops[2], `"op":"MERGE_TUPLE"`)
	require.Contains(t, ops[2], `"stack":"[1, true]"`)
	require.Contains(t, ops[4], `"op":"HALT"`)
}

func TestDebugInfo(t *testing.T) {
	var d DebugInfo
	d.PushFrame()
	d.PushVariable("$a", 0)
	d.PushVariable("$b", 1)
	d.PushFrame()
	d.PushVariable("$c", 2)
	require.Equal(t, []VariableInfo{{Name: "$c", StackIndex: 2}}, d.FrameVariables(1))

	d.PopVariables(1)
	require.Empty(t, d.FrameVariables(1))
	d.PopFrame()
	require.Len(t, d.FrameVariables(0), 2)
	require.Nil(t, d.FrameVariables(1))

	d.PopVariables(5)
	require.Empty(t, d.Variables)
	d.PopFrame()
	d.PopFrame()
	d.Clear()
	require.Empty(t, d.Frames)
}

func TestDebuggerEndsAfterNativePanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("explode", 0, func(c *Context) {
		panic("kaboom")
	}))
	asm := compileWith(t, &compiler.Config{Mode: compiler.Debug, Natives: r}, "1;\nexplode;")
	exe, err := Link(asm, r, nil)
	require.NoError(t, err)

	rec := &recorder{}
	machine := New(WithDebugger(rec))
	_, err = machine.Execute(context.Background(), exe, bytecode.EntryCommand, nil)
	require.EqualError(t, err, "panic: kaboom")
	require.Equal(t, 1, rec.begins)
	require.Equal(t, 1, rec.ends)
	require.NotEmpty(t, rec.hooks)

	// The machine is usable again afterwards.
	_, err = machine.Execute(context.Background(), exe, bytecode.EntryCommand, nil)
	require.Error(t, err)
	require.Equal(t, 2, rec.ends)
}

// frameMapper records, per hook, the variables found through
// DebugFrameIndex for every VM frame above the sentinel.
type frameMapper struct {
	hooks [][][]VariableInfo
}

func (m *frameMapper) OnBegin(*VirtualMachine, *bytecode.Assembly) {}
func (m *frameMapper) OnEnd(*VirtualMachine, *bytecode.Assembly)   {}

func (m *frameMapper) OnHook(vm *VirtualMachine) {
	var frames [][]VariableInfo
	for depth := 1; depth < len(vm.Frames()); depth++ {
		index, ok := vm.DebugFrameIndex(depth)
		if !ok {
			frames = append(frames, nil)
			continue
		}
		frames = append(frames, append([]VariableInfo(nil), vm.DebugInfo().FrameVariables(index)...))
	}
	m.hooks = append(m.hooks, frames)
}

func TestDebugFrameIndexWithReleaseCaller(t *testing.T) {
	r := testRegistry(t)
	lib := compileWith(t, &compiler.Config{Name: "lib", Mode: compiler.Debug, Natives: r},
		"export command show $p { let $q = add $p 1; $q; }")
	modules := bytecode.Modules{"lib": lib}
	main := compileWith(t, &compiler.Config{Mode: compiler.Release, Natives: r, Modules: modules},
		"import \"lib\";\nlet $a = 5;\nshow $a;")
	exe, err := Link(main, r, modules)
	require.NoError(t, err)

	mapper := &frameMapper{}
	result, err := New(WithDebugger(mapper)).Execute(context.Background(), exe, bytecode.EntryCommand, nil)
	require.NoError(t, err)
	require.Equal(t, ints(6), result)
	require.NotEmpty(t, mapper.hooks)

	found := false
	for _, frames := range mapper.hooks {
		require.Len(t, frames, 2)
		// The release entry has no debug frame.
		require.Nil(t, frames[0])
		if len(frames[1]) == 2 {
			require.Equal(t, []VariableInfo{
				{Name: "$p", StackIndex: 1},
				{Name: "$q", StackIndex: 2},
			}, frames[1])
			found = true
		}
	}
	require.True(t, found)

	machine := New()
	_, ok := machine.DebugFrameIndex(1)
	require.False(t, ok)
}
