// Package bytecode provides the compiled representation of maestro programs.
//
// The compiler produces an [Assembly]: a flat byte stream of instructions plus
// the tables the instructions index into (literals, command definitions,
// native command definitions and call sites, dependency modules) and the
// source tables used to map code indexes back to source text.
//
// # Immutability
//
// An Assembly is built once by the compiler and must not be modified
// afterwards. It holds no run-time state, so one Assembly may be linked and
// executed by any number of virtual machines at the same time.
//
// # Encoding
//
// Operands follow the opcode byte. 16-bit operands are little-endian and
// jump operands are unsigned distances whose direction is implied by the
// opcode. See package op for the operand widths.
//
// # Persistence
//
// [Marshal] and [Unmarshal] store an Assembly as canonical CBOR so compiled
// programs can be shipped without their compiler.
package bytecode
