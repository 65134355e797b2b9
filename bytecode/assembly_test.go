package bytecode

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/token"
	"github.com/maestro-lang/maestro/value"
	"github.com/stretchr/testify/require"
)

func testAssembly() *Assembly {
	asm := NewAssembly("test", true)
	asm.Bytes = []byte{
		byte(op.PushEmptyTuple),
		byte(op.PushLiteral), 0, 0,
		byte(op.ExecuteNativeCommand), 0, 0,
		byte(op.Return),
		byte(op.Halt),
	}
	asm.Literals = []value.Value{
		value.NewInt(7),
		value.NewFloat(-0.5),
		value.NewString("hi"),
		value.Null,
		value.NewBool(true),
		value.NewArray([]value.Value{value.NewInt(1), value.NewArray([]value.Value{})}),
	}
	asm.Commands = []CommandDefinition{{Name: EntryCommand, CodeIndex: 0}}
	asm.NativeCommands = []NativeCommandDefinition{{Name: "print", ParameterCount: 1}}
	asm.NativeInstances = []NativeInstance{{DefinitionIndex: 0, Slice: token.Slice{Index: 0, Length: 5}}}
	asm.Dependencies = []Dependency{{Name: "lib", ID: uuid.Must(uuid.NewV4())}}
	asm.Sources = []Source{{URI: "main.mae", Content: "print 7;\nprint 8;"}, {URI: "lib.mae", Content: "x"}}
	asm.SourceSlices = make([]token.Slice, len(asm.Bytes))
	asm.SourceSlices[4] = token.Slice{Index: 9, Length: 5}
	asm.SourceRuns = []SourceRun{{CodeIndex: 0, SourceIndex: 0}, {CodeIndex: 7, SourceIndex: 1}}
	return asm
}

func TestFindCommand(t *testing.T) {
	asm := testAssembly()
	asm.Commands = append(asm.Commands, CommandDefinition{Name: "hidden"}, CommandDefinition{Name: "shown", Exported: true})

	index, ok := asm.FindCommand("hidden")
	require.True(t, ok)
	require.Equal(t, 1, index)
	_, ok = asm.FindExportedCommand("hidden")
	require.False(t, ok)
	index, ok = asm.FindExportedCommand("shown")
	require.True(t, ok)
	require.Equal(t, 2, index)
	index, ok = asm.FindNativeCommand("print")
	require.True(t, ok)
	require.Equal(t, 0, index)
}

func TestSourceLookup(t *testing.T) {
	asm := testAssembly()
	require.Equal(t, 0, asm.SourceIndexAt(4))
	require.Equal(t, 1, asm.SourceIndexAt(7))
	require.Equal(t, 1, asm.SourceIndexAt(8))

	loc := asm.LocationAt(4)
	require.Equal(t, "main.mae", loc.URI)
	require.Equal(t, 2, loc.Line)
	require.Equal(t, 1, loc.Column)
	require.Equal(t, "print 8;", loc.Source)

	require.True(t, asm.LocationOf(5, token.Slice{}).IsZero())
	require.Equal(t, -1, (&Assembly{}).SourceIndexAt(0))
}

func TestValidate(t *testing.T) {
	asm := testAssembly()
	require.NoError(t, asm.Validate())

	asm.Bytes[len(asm.Bytes)-1] = byte(op.Return)
	require.ErrorContains(t, asm.Validate(), "must end with HALT")

	asm = testAssembly()
	asm.NativeInstances[0].DefinitionIndex = 3
	require.ErrorContains(t, asm.Validate(), "unknown definition 3")
}

func TestUint16At(t *testing.T) {
	asm := &Assembly{Bytes: []byte{0, 0x34, 0x12}}
	require.Equal(t, 0x1234, asm.Uint16At(1))
}

func TestMarshalRoundTrip(t *testing.T) {
	asm := testAssembly()
	data, err := Marshal(asm)
	require.NoError(t, err)

	again, err := Marshal(asm)
	require.NoError(t, err)
	require.Equal(t, data, again)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, asm.ID, decoded.ID)
	require.Equal(t, asm.Name, decoded.Name)
	require.True(t, decoded.Debug)
	require.Equal(t, asm.Bytes, decoded.Bytes)
	require.Equal(t, asm.Commands, decoded.Commands)
	require.Equal(t, asm.NativeCommands, decoded.NativeCommands)
	require.Equal(t, asm.NativeInstances, decoded.NativeInstances)
	require.Equal(t, asm.Dependencies, decoded.Dependencies)
	require.Equal(t, asm.Sources, decoded.Sources)
	require.Equal(t, asm.SourceSlices, decoded.SourceSlices)
	require.Equal(t, asm.SourceRuns, decoded.SourceRuns)
	require.Len(t, decoded.Literals, len(asm.Literals))
	for i := range asm.Literals {
		require.True(t, asm.Literals[i].Equal(decoded.Literals[i]), "literal %d", i)
	}
}

func TestMarshalRejectsHostObjects(t *testing.T) {
	asm := testAssembly()
	asm.Literals = append(asm.Literals, value.NewObject(struct{}{}))
	_, err := Marshal(asm)
	require.ErrorContains(t, err, "unsupported object literal")
}

func TestModules(t *testing.T) {
	lib := NewAssembly("lib", false)
	modules := Modules{"lib": lib}
	got, err := modules.ResolveModule("lib")
	require.NoError(t, err)
	require.Same(t, lib, got)
	_, err = modules.ResolveModule("nope")
	require.EqualError(t, err, "module not found: nope")
}
