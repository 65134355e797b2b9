package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/token"
	"github.com/maestro-lang/maestro/value"
)

// EntryCommand names the implicit command formed by the top level of the
// main source unit.
const EntryCommand = "<entry>"

// Source is one unit of source text.
type Source struct {
	URI     string
	Content string
}

// CommandDefinition describes a command compiled into the assembly.
type CommandDefinition struct {
	Name           string
	CodeIndex      int
	ParameterCount int
	Exported       bool
}

// NativeCommandDefinition describes a host command declared by the program.
type NativeCommandDefinition struct {
	Name           string
	ParameterCount int
}

// NativeInstance is one native call site. The linker creates one host
// command instance per call site.
type NativeInstance struct {
	DefinitionIndex int
	Slice           token.Slice
}

// Dependency is an imported module, pinned to the assembly the importing
// program was compiled against.
type Dependency struct {
	Name string
	ID   uuid.UUID
}

// SourceRun marks that code from CodeIndex onward was compiled from the
// source at SourceIndex, until the next run starts.
type SourceRun struct {
	CodeIndex   int
	SourceIndex int
}

// Assembly is the output of compilation.
type Assembly struct {
	ID    uuid.UUID
	Name  string
	Debug bool

	Bytes           []byte
	Literals        []value.Value
	Commands        []CommandDefinition
	NativeCommands  []NativeCommandDefinition
	NativeInstances []NativeInstance
	Dependencies    []Dependency

	Sources []Source
	// SourceSlices holds the source range responsible for each byte.
	SourceSlices []token.Slice
	SourceRuns   []SourceRun
}

// NewAssembly returns an empty assembly with a fresh identity.
func NewAssembly(name string, debug bool) *Assembly {
	return &Assembly{
		ID:    uuid.Must(uuid.NewV4()),
		Name:  name,
		Debug: debug,
	}
}

// FindCommand returns the index of the named command definition.
func (a *Assembly) FindCommand(name string) (int, bool) {
	for i, def := range a.Commands {
		if def.Name == name {
			return i, true
		}
	}
	return -1, false
}

// FindExportedCommand returns the index of the named command if it is
// exported.
func (a *Assembly) FindExportedCommand(name string) (int, bool) {
	index, ok := a.FindCommand(name)
	if !ok || !a.Commands[index].Exported {
		return -1, false
	}
	return index, true
}

// FindNativeCommand returns the index of the named native definition.
func (a *Assembly) FindNativeCommand(name string) (int, bool) {
	for i, def := range a.NativeCommands {
		if def.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Uint16At decodes the little-endian operand at index.
func (a *Assembly) Uint16At(index int) int {
	return int(binary.LittleEndian.Uint16(a.Bytes[index:]))
}

// Validate checks the structural guarantees the virtual machine relies on.
func (a *Assembly) Validate() error {
	if len(a.Bytes) == 0 || op.Code(a.Bytes[len(a.Bytes)-1]) != op.Halt {
		return fmt.Errorf("assembly %q: code must end with %s", a.Name, op.Halt)
	}
	if len(a.SourceSlices) != 0 && len(a.SourceSlices) != len(a.Bytes) {
		return fmt.Errorf("assembly %q: source map covers %d of %d bytes",
			a.Name, len(a.SourceSlices), len(a.Bytes))
	}
	for _, def := range a.Commands {
		if def.CodeIndex < 0 || def.CodeIndex >= len(a.Bytes) {
			return fmt.Errorf("assembly %q: command %q starts outside the code", a.Name, def.Name)
		}
	}
	for _, inst := range a.NativeInstances {
		if inst.DefinitionIndex < 0 || inst.DefinitionIndex >= len(a.NativeCommands) {
			return fmt.Errorf("assembly %q: native call site references unknown definition %d",
				a.Name, inst.DefinitionIndex)
		}
	}
	return nil
}

// Modules is a set of compiled modules addressed by name.
type Modules map[string]*Assembly

// ResolveModule returns the module registered under name.
func (m Modules) ResolveModule(name string) (*Assembly, error) {
	if asm, ok := m[name]; ok {
		return asm, nil
	}
	return nil, fmt.Errorf("module not found: %s", name)
}
