package compiler

import (
	"strconv"

	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/token"
	"github.com/maestro-lang/maestro/value"
)

type commandKind uint8

const (
	commandLocal commandKind = iota
	commandNative
	commandExternal
)

// commandRef is a resolved command name.
type commandRef struct {
	kind           commandKind
	index          int
	module         int
	parameterCount int
}

// resolveCommand looks a name up among the commands of this assembly, then
// the declared native commands, then the exported commands of imports.
func (c *Compiler) resolveCommand(name string) (commandRef, bool) {
	if i, ok := c.assembly.FindCommand(name); ok {
		return commandRef{
			kind:           commandLocal,
			index:          i,
			parameterCount: c.assembly.Commands[i].ParameterCount,
		}, true
	}
	if i, ok := c.assembly.FindNativeCommand(name); ok {
		return commandRef{
			kind:           commandNative,
			index:          i,
			parameterCount: c.assembly.NativeCommands[i].ParameterCount,
		}, true
	}
	for m, dep := range c.imports {
		if i, ok := dep.FindExportedCommand(name); ok {
			return commandRef{
				kind:           commandExternal,
				index:          i,
				module:         m,
				parameterCount: dep.Commands[i].ParameterCount,
			}, true
		}
	}
	return commandRef{}, false
}

func (c *Compiler) commandNames() []string {
	var names []string
	for _, def := range c.assembly.Commands {
		names = append(names, def.Name)
	}
	for _, def := range c.assembly.NativeCommands {
		names = append(names, def.Name)
	}
	for _, dep := range c.imports {
		for _, def := range dep.Commands {
			if def.Exported {
				names = append(names, def.Name)
			}
		}
	}
	return names
}

func withHint(hint string) string {
	if hint == "" {
		return ""
	}
	return "; " + hint
}

func (c *Compiler) resolveVariableOrError(tok token.Token) int {
	index := c.resolveVariable(tok.Literal)
	if index < 0 {
		c.addSoftError(tok.Slice, "undefined variable %s%s", tok.Literal,
			withHint(suggest(tok.Literal, c.visibleVariableNames())))
	}
	return index
}

// expression compiles a tuple followed by any number of pipes.
func (c *Compiler) expression() {
	c.tuple()
	for c.match(token.PIPE) {
		c.call(true)
	}
}

// tuple compiles comma separated values into a single tuple.
func (c *Compiler) tuple() {
	c.value()
	for c.match(token.COMMA) {
		c.value()
		c.emitInstruction(op.MergeTuple)
	}
}

func (c *Compiler) value() {
	if c.check(token.IDENT) {
		c.call(false)
		return
	}
	c.primary()
}

// call compiles a command invocation. A piped call takes the tuple already
// on the stack as its input; otherwise the input is empty. Each argument is
// narrowed to exactly one value.
func (c *Compiler) call(piped bool) {
	if !c.consume(token.IDENT, "expected command name, found %s", describe(c.current)) {
		return
	}
	nameTok := c.previous
	ref, ok := c.resolveCommand(nameTok.Literal)
	if !ok {
		c.addHardError(nameTok.Slice, "unknown command '%s'%s", nameTok.Literal,
			withHint(suggest(nameTok.Literal, c.commandNames())))
		return
	}
	if !piped {
		c.emitInstruction(op.PushEmptyTuple)
	}
	for i := 0; i < ref.parameterCount; i++ {
		c.value()
		c.emitKeep(1)
	}

	// Attribute the call itself to the command name rather than its last
	// argument.
	last := c.previous
	c.previous = nameTok
	switch ref.kind {
	case commandLocal:
		c.emitExecuteCommand(ref.index)
	case commandNative:
		c.emitExecuteNativeCommand(ref.index, nameTok.Slice)
	case commandExternal:
		c.emitExecuteExternalCommand(ref.module, ref.index)
	}
	c.previous = last
}

func (c *Compiler) primary() {
	tok := c.current
	switch tok.Type {
	case token.INT:
		c.advance()
		i, err := strconv.ParseInt(tok.Literal, 10, 32)
		if err != nil {
			c.addSoftError(tok.Slice, "integer literal %s is out of range", tok.Literal)
		}
		c.emitPushLiteral(value.NewInt(int32(i)))
	case token.FLOAT:
		c.advance()
		f, err := strconv.ParseFloat(tok.Literal, 32)
		if err != nil {
			c.addSoftError(tok.Slice, "float literal %s is out of range", tok.Literal)
		}
		c.emitPushLiteral(value.NewFloat(float32(f)))
	case token.STRING:
		c.advance()
		c.emitPushLiteral(value.NewString(tok.Literal))
	case token.TRUE:
		c.advance()
		c.emitInstruction(op.PushTrue)
	case token.FALSE:
		c.advance()
		c.emitInstruction(op.PushFalse)
	case token.NULL:
		c.advance()
		c.emitPushLiteral(value.Null)
	case token.INPUT:
		c.advance()
		c.emitInstruction(op.PushInput)
	case token.VARIABLE:
		c.advance()
		if index := c.resolveVariableOrError(tok); index >= 0 {
			c.emitVariableInstruction(op.PushLocal, index)
		} else {
			c.emitPushLiteral(value.Null)
		}
	case token.LPAREN:
		c.advance()
		c.expression()
		c.consume(token.RPAREN, "expected ')' after expression, found %s", describe(c.current))
	default:
		c.addHardError(tok.Slice, "expected expression, found %s", describe(tok))
	}
}
