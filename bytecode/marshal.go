package bytecode

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	"github.com/maestro-lang/maestro/token"
	"github.com/maestro-lang/maestro/value"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

type assemblyDef struct {
	Version         int                       `cbor:"1,keyasint"`
	ID              [16]byte                  `cbor:"2,keyasint"`
	Name            string                    `cbor:"3,keyasint"`
	Debug           bool                      `cbor:"4,keyasint"`
	Bytes           []byte                    `cbor:"5,keyasint"`
	Literals        []literalDef              `cbor:"6,keyasint,omitempty"`
	Commands        []CommandDefinition       `cbor:"7,keyasint,omitempty"`
	NativeCommands  []NativeCommandDefinition `cbor:"8,keyasint,omitempty"`
	NativeInstances []NativeInstance          `cbor:"9,keyasint,omitempty"`
	Dependencies    []dependencyDef           `cbor:"10,keyasint,omitempty"`
	Sources         []Source                  `cbor:"11,keyasint,omitempty"`
	SourceSlices    []token.Slice             `cbor:"12,keyasint,omitempty"`
	SourceRuns      []SourceRun               `cbor:"13,keyasint,omitempty"`
}

type dependencyDef struct {
	Name string   `cbor:"1,keyasint"`
	ID   [16]byte `cbor:"2,keyasint"`
}

type literalDef struct {
	Kind     value.Kind   `cbor:"1,keyasint"`
	Bits     uint32       `cbor:"2,keyasint,omitempty"`
	String   *string      `cbor:"3,keyasint,omitempty"`
	Elements []literalDef `cbor:"4,keyasint,omitempty"`
}

// Marshal encodes an assembly as canonical CBOR. Object literals other than
// null and strings cannot be encoded.
func Marshal(asm *Assembly) ([]byte, error) {
	def := assemblyDef{
		Version:         formatVersion,
		ID:              [16]byte(asm.ID),
		Name:            asm.Name,
		Debug:           asm.Debug,
		Bytes:           asm.Bytes,
		Commands:        asm.Commands,
		NativeCommands:  asm.NativeCommands,
		NativeInstances: asm.NativeInstances,
		Sources:         asm.Sources,
		SourceSlices:    asm.SourceSlices,
		SourceRuns:      asm.SourceRuns,
	}
	for i, lit := range asm.Literals {
		ld, err := literalFromValue(lit)
		if err != nil {
			return nil, fmt.Errorf("bytecode: literal %d: %w", i, err)
		}
		def.Literals = append(def.Literals, ld)
	}
	for _, dep := range asm.Dependencies {
		def.Dependencies = append(def.Dependencies, dependencyDef{Name: dep.Name, ID: [16]byte(dep.ID)})
	}
	return cborEncMode.Marshal(&def)
}

// Unmarshal decodes an assembly produced by Marshal.
func Unmarshal(data []byte) (*Assembly, error) {
	var def assemblyDef
	if err := cbor.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal assembly: %w", err)
	}
	if def.Version != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported assembly format version %d", def.Version)
	}
	asm := &Assembly{
		ID:              uuid.UUID(def.ID),
		Name:            def.Name,
		Debug:           def.Debug,
		Bytes:           def.Bytes,
		Commands:        def.Commands,
		NativeCommands:  def.NativeCommands,
		NativeInstances: def.NativeInstances,
		Sources:         def.Sources,
		SourceSlices:    def.SourceSlices,
		SourceRuns:      def.SourceRuns,
	}
	for _, ld := range def.Literals {
		asm.Literals = append(asm.Literals, ld.toValue())
	}
	for _, dep := range def.Dependencies {
		asm.Dependencies = append(asm.Dependencies, Dependency{Name: dep.Name, ID: uuid.UUID(dep.ID)})
	}
	if err := asm.Validate(); err != nil {
		return nil, err
	}
	return asm, nil
}

func literalFromValue(v value.Value) (literalDef, error) {
	switch v.Kind() {
	case value.False, value.True:
		return literalDef{Kind: v.Kind()}, nil
	case value.Int, value.Float:
		return literalDef{Kind: v.Kind(), Bits: uint32(v.Int())}, nil
	case value.Array:
		ld := literalDef{Kind: value.Array, Elements: []literalDef{}}
		for _, e := range v.Array() {
			el, err := literalFromValue(e)
			if err != nil {
				return literalDef{}, err
			}
			ld.Elements = append(ld.Elements, el)
		}
		return ld, nil
	default:
		if v.IsNull() {
			return literalDef{Kind: value.Object}, nil
		}
		s, ok := v.Str()
		if !ok {
			return literalDef{}, fmt.Errorf("unsupported object literal of type %T", v.Object())
		}
		return literalDef{Kind: value.Object, String: &s}, nil
	}
}

func (ld literalDef) toValue() value.Value {
	switch ld.Kind {
	case value.False:
		return value.NewBool(false)
	case value.True:
		return value.NewBool(true)
	case value.Int:
		return value.NewInt(int32(ld.Bits))
	case value.Float:
		return value.NewFloat(math.Float32frombits(ld.Bits))
	case value.Array:
		elements := make([]value.Value, len(ld.Elements))
		for i, e := range ld.Elements {
			elements[i] = e.toValue()
		}
		return value.NewArray(elements)
	default:
		if ld.String == nil {
			return value.Null
		}
		return value.NewString(*ld.String)
	}
}
