package compiler

import (
	"github.com/maestro-lang/maestro/token"
)

type scopeKind uint8

const (
	scopeEntry scopeKind = iota
	scopeCommand
	scopeSource
	scopeBlock
	scopeForEach
)

type scope struct {
	kind           scopeKind
	variablesStart int
	// sealed forbids declarations: slots above a forEach element run are
	// not addressable.
	sealed bool
}

type variable struct {
	name  string
	slice token.Slice
}

func (c *Compiler) pushScope(kind scopeKind) {
	sealed := false
	if n := len(c.scopes); n > 0 && kind != scopeCommand {
		sealed = c.scopes[n-1].sealed
	}
	c.scopes = append(c.scopes, scope{
		kind:           kind,
		variablesStart: len(c.variables),
		sealed:         sealed,
	})
}

// popScope forgets the variables of the innermost scope. Block scopes pop
// their values; command scopes are unwound by Return.
func (c *Compiler) popScope() {
	s := c.scopes[len(c.scopes)-1]
	c.scopes = c.scopes[:len(c.scopes)-1]
	count := len(c.variables) - s.variablesStart
	c.variables = c.variables[:s.variablesStart]
	if s.kind == scopeEntry || s.kind == scopeCommand {
		return
	}
	c.emitDebugPopVariableInfo(count)
	c.emitPop(count)
}

// commandScope returns the scope of the command being compiled.
func (c *Compiler) commandScope() scope {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if k := c.scopes[i].kind; k == scopeEntry || k == scopeCommand {
			return c.scopes[i]
		}
	}
	return scope{}
}

// isTopLevel reports whether declarations are allowed at this point.
func (c *Compiler) isTopLevel() bool {
	if len(c.scopes) == 0 {
		return false
	}
	k := c.scopes[len(c.scopes)-1].kind
	return k == scopeEntry || k == scopeSource
}

// declareVariable adds a variable to the innermost scope. The caller must
// have arranged for the value to occupy the next local slot.
func (c *Compiler) declareVariable(tok token.Token) int {
	s := c.scopes[len(c.scopes)-1]
	if s.sealed {
		c.addSoftError(tok.Slice, "cannot declare %s inside a forEach body", tok.Literal)
	}
	for i := len(c.variables) - 1; i >= s.variablesStart; i-- {
		if c.variables[i].name == tok.Literal {
			c.addSoftError(tok.Slice, "variable %s is already declared in this scope", tok.Literal)
			break
		}
	}
	if len(c.variables)-c.commandScope().variablesStart >= MaxLocals {
		c.addSoftError(tok.Slice, "too many local variables in command")
	}
	c.emitDebugPushVariableInfo(tok.Literal)
	c.variables = append(c.variables, variable{name: tok.Literal, slice: tok.Slice})
	return len(c.variables) - 1
}

// resolveVariable returns the index of the named variable visible from the
// current command, or -1.
func (c *Compiler) resolveVariable(name string) int {
	start := c.commandScope().variablesStart
	for i := len(c.variables) - 1; i >= start; i-- {
		if c.variables[i].name == name {
			return i
		}
	}
	return -1
}

func (c *Compiler) visibleVariableNames() []string {
	start := c.commandScope().variablesStart
	names := make([]string, 0, len(c.variables)-start)
	for _, v := range c.variables[start:] {
		names = append(names, v.name)
	}
	return names
}
