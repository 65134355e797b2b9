package compiler

import (
	"path"
	"strconv"

	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/token"
	"github.com/maestro-lang/maestro/value"
)

// forEachIndexName names the hidden loop counter. It cannot collide with a
// user variable since those always start with '$'.
const forEachIndexName = "#index"

// statements compiles declarations and statements until end. When
// keepResult is set, the tuple of a trailing expression statement is left on
// the stack and true is returned.
func (c *Compiler) statements(end token.Type, keepResult bool) bool {
	pending := false
	for !c.check(end) && !c.check(token.EOF) {
		if pending {
			c.emitKeep(0)
			pending = false
		}
		start := c.current.Slice
		pending = c.declaration()
		if pending && !keepResult {
			c.emitKeep(0)
			pending = false
		}
		if c.panicMode {
			c.synchronize()
			if c.current.Slice == start && !c.check(end) && !c.check(token.EOF) {
				c.advance()
			}
		}
	}
	return pending
}

// declaration compiles one declaration or statement and reports whether it
// left an expression tuple on the stack.
func (c *Compiler) declaration() bool {
	switch {
	case c.match(token.COMMAND):
		c.commandDeclaration(false)
	case c.match(token.EXPORT):
		if c.consume(token.COMMAND, "expected 'command' after 'export'") {
			c.commandDeclaration(true)
		}
	case c.match(token.EXTERNAL):
		c.externalDeclaration()
	case c.match(token.IMPORT):
		c.importDeclaration()
	case c.match(token.INCLUDE):
		c.includeDeclaration()
	default:
		return c.statement()
	}
	return false
}

func (c *Compiler) statement() bool {
	switch {
	case c.match(token.LET):
		c.letStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOREACH):
		c.forEachStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.check(token.LBRACE):
		c.block()
	case c.check(token.VARIABLE) && c.peekType() == token.ASSIGN:
		c.assignStatement()
	default:
		c.expression()
		c.consume(token.SEMICOLON, "expected ';' after expression, found %s", describe(c.current))
		return true
	}
	return false
}

func (c *Compiler) requireTopLevel(slice token.Slice, what string) bool {
	if c.isTopLevel() {
		return true
	}
	c.addSoftError(slice, "%s is only allowed at the top level", what)
	return false
}

// beginCommand registers a command definition whose body starts at the
// current code position and opens its scope.
func (c *Compiler) beginCommand(name string, exported bool, kind scopeKind, params ...token.Token) {
	if len(c.assembly.Commands) > maxOperand {
		c.addSoftError(c.previous.Slice, "too many commands")
	}
	c.assembly.Commands = append(c.assembly.Commands, bytecode.CommandDefinition{
		Name:           name,
		CodeIndex:      len(c.assembly.Bytes),
		ParameterCount: len(params),
		Exported:       exported,
	})
	c.pushScope(kind)
	c.emitDebugInstruction(op.DebugPushDebugFrame)
	for _, p := range params {
		c.declareVariable(p)
	}
}

// endCommand returns the pending tuple, or an empty one, from the command
// opened by beginCommand.
func (c *Compiler) endCommand(hasResult bool) {
	if !hasResult {
		c.emitInstruction(op.PushEmptyTuple)
	}
	c.emitDebugInstruction(op.DebugPopDebugFrame)
	c.emitInstruction(op.Return)
	c.popScope()
}

// commandDeclaration compiles `command name $p... { body }`. The body is
// emitted inline and skipped over by a forward jump. The command is
// registered before its body so it may call itself.
func (c *Compiler) commandDeclaration(exported bool) {
	keyword := c.previous.Slice
	c.requireTopLevel(keyword, "command declaration")
	if !c.consume(token.IDENT, "expected command name") {
		return
	}
	nameTok := c.previous
	if _, ok := c.resolveCommand(nameTok.Literal); ok {
		c.addSoftError(nameTok.Slice, "command '%s' is already defined", nameTok.Literal)
	}
	var params []token.Token
	for c.match(token.VARIABLE) {
		params = append(params, c.previous)
	}
	if len(params) > MaxParameters {
		c.addSoftError(nameTok.Slice, "command '%s' declares too many parameters", nameTok.Literal)
	}

	skip := c.beginEmitForwardJump(op.JumpForward)
	c.beginCommand(nameTok.Literal, exported, scopeCommand, params...)
	hasResult := false
	if c.consume(token.LBRACE, "expected '{' before command body") {
		hasResult = c.statements(token.RBRACE, true)
		c.consume(token.RBRACE, "expected '}' after command body")
	}
	c.endCommand(hasResult)
	c.endEmitForwardJump(skip)
}

// externalDeclaration compiles `external command name count;`.
func (c *Compiler) externalDeclaration() {
	keyword := c.previous.Slice
	if !c.consume(token.COMMAND, "expected 'command' after 'external'") {
		return
	}
	if !c.consume(token.IDENT, "expected native command name") {
		return
	}
	nameTok := c.previous
	if !c.consume(token.INT, "expected parameter count after native command name") {
		return
	}
	countTok := c.previous
	c.consume(token.SEMICOLON, "expected ';' after external command declaration")
	if !c.requireTopLevel(keyword, "external command declaration") {
		return
	}

	count, err := strconv.Atoi(countTok.Literal)
	if err != nil || count < 0 || count > MaxParameters {
		c.addSoftError(countTok.Slice, "invalid parameter count %s", countTok.Literal)
		return
	}
	if _, ok := c.resolveCommand(nameTok.Literal); ok {
		c.addSoftError(nameTok.Slice, "command '%s' is already defined", nameTok.Literal)
		return
	}
	if c.natives != nil {
		expected, ok := c.natives.LookupNative(nameTok.Literal)
		if !ok {
			c.addSoftError(nameTok.Slice, "no native command named '%s' is registered", nameTok.Literal)
			return
		}
		if expected != count {
			c.addSoftError(countTok.Slice, "native command '%s' takes %d parameters, declared with %d",
				nameTok.Literal, expected, count)
			return
		}
	}
	c.assembly.NativeCommands = append(c.assembly.NativeCommands, bytecode.NativeCommandDefinition{
		Name:           nameTok.Literal,
		ParameterCount: count,
	})
}

// importDeclaration compiles `import "module";`, making the exported
// commands of a compiled module callable.
func (c *Compiler) importDeclaration() {
	keyword := c.previous.Slice
	if !c.consume(token.STRING, "expected module name after 'import'") {
		return
	}
	nameTok := c.previous
	c.consume(token.SEMICOLON, "expected ';' after import")
	if !c.requireTopLevel(keyword, "import") {
		return
	}
	for _, dep := range c.assembly.Dependencies {
		if dep.Name == nameTok.Literal {
			return
		}
	}
	if c.modules == nil {
		c.addSoftError(nameTok.Slice, "cannot import '%s': no modules are available", nameTok.Literal)
		return
	}
	if len(c.assembly.Dependencies) >= maxModules {
		c.addSoftError(nameTok.Slice, "too many imported modules")
		return
	}
	asm, err := c.modules.ResolveModule(nameTok.Literal)
	if err != nil {
		c.addSoftError(nameTok.Slice, "cannot import '%s': %s", nameTok.Literal, err.Error())
		return
	}
	c.assembly.Dependencies = append(c.assembly.Dependencies, bytecode.Dependency{
		Name: nameTok.Literal,
		ID:   asm.ID,
	})
	c.imports = append(c.imports, asm)
}

// includeDeclaration compiles `include "path";` by compiling the referenced
// source in place. Relative paths resolve against the including source.
func (c *Compiler) includeDeclaration() {
	keyword := c.previous.Slice
	if !c.consume(token.STRING, "expected path after 'include'") {
		return
	}
	pathTok := c.previous
	c.consume(token.SEMICOLON, "expected ';' after include")
	if !c.requireTopLevel(keyword, "include") {
		return
	}
	if c.loader == nil {
		c.addSoftError(pathTok.Slice, "cannot include '%s': no source loader configured", pathTok.Literal)
		return
	}
	uri := pathTok.Literal
	if !path.IsAbs(uri) && c.uri != "" {
		uri = path.Join(path.Dir(c.uri), uri)
	}
	for _, active := range c.including {
		if active == uri {
			c.addSoftError(pathTok.Slice, "include cycle detected for '%s'", uri)
			return
		}
	}
	content, err := c.loader.LoadSource(uri)
	if err != nil {
		c.addSoftError(pathTok.Slice, "cannot include '%s': %s", uri, err.Error())
		return
	}
	c.compileUnit(bytecode.Source{URI: uri, Content: content})
}

// letStatement compiles `let $a, $b = expression;`. The first variable
// receives the first value of the tuple.
func (c *Compiler) letStatement() {
	var names []token.Token
	for {
		if !c.consume(token.VARIABLE, "expected variable name after 'let'") {
			return
		}
		names = append(names, c.previous)
		if !c.match(token.COMMA) {
			break
		}
	}
	if !c.consume(token.ASSIGN, "expected '=' after variable declaration") {
		return
	}
	c.expression()
	c.consume(token.SEMICOLON, "expected ';' after variable declaration")
	c.emitKeep(len(names))
	for _, name := range names {
		c.declareVariable(name)
	}
}

// assignStatement compiles `$x = expression;`.
func (c *Compiler) assignStatement() {
	c.advance()
	nameTok := c.previous
	c.advance()
	c.expression()
	c.consume(token.SEMICOLON, "expected ';' after assignment")
	index := c.resolveVariableOrError(nameTok)
	c.emitKeep(1)
	if index >= 0 {
		c.emitVariableInstruction(op.SetLocal, index)
	} else {
		c.emitPop(1)
	}
}

// block compiles `{ ... }` in its own scope, discarding every tuple.
func (c *Compiler) block() {
	if !c.consume(token.LBRACE, "expected '{'") {
		return
	}
	c.pushScope(scopeBlock)
	c.statements(token.RBRACE, false)
	c.consume(token.RBRACE, "expected '}' after block")
	c.popScope()
}

func (c *Compiler) ifStatement() {
	c.expression()
	skipThen := c.beginEmitForwardJump(op.IfConditionJump)
	c.block()
	if !c.match(token.ELSE) {
		c.endEmitForwardJump(skipThen)
		return
	}
	skipElse := c.beginEmitForwardJump(op.JumpForward)
	c.endEmitForwardJump(skipThen)
	if c.match(token.IF) {
		c.ifStatement()
	} else {
		c.block()
	}
	c.endEmitForwardJump(skipElse)
}

func (c *Compiler) whileStatement() {
	loopStart := c.beginEmitBackwardJump()
	c.expression()
	exit := c.beginEmitForwardJump(op.IfConditionJump)
	c.block()
	c.endEmitBackwardJump(op.JumpBackward, loopStart)
	c.endEmitForwardJump(exit)
}

// forEachStatement compiles `forEach $e in expression { body }`.
//
// Two hidden slots sit below the element tuple: the index of the current
// element, starting at -1, and the loop variable. ForEachConditionJump
// advances the index and copies the element into the loop variable, or drops
// the element tuple and leaves the loop.
func (c *Compiler) forEachStatement() {
	if !c.consume(token.VARIABLE, "expected loop variable after 'forEach'") {
		return
	}
	elementTok := c.previous
	if !c.consume(token.IN, "expected 'in' after loop variable") {
		return
	}
	if c.scopes[len(c.scopes)-1].sealed {
		c.addSoftError(elementTok.Slice, "cannot nest forEach inside a forEach body")
	}
	c.pushScope(scopeForEach)
	c.emitPushLiteral(value.NewInt(-1))
	c.emitInstruction(op.PushFalse)
	c.emitInstruction(op.MergeTuple)
	c.emitKeep(2)
	c.declareVariable(token.Token{Type: token.VARIABLE, Literal: forEachIndexName, Slice: elementTok.Slice})
	c.declareVariable(elementTok)
	c.scopes[len(c.scopes)-1].sealed = true

	c.expression()
	loopStart := c.beginEmitBackwardJump()
	exit := c.beginEmitForwardJump(op.ForEachConditionJump)
	c.block()
	c.endEmitBackwardJump(op.JumpBackward, loopStart)
	c.endEmitForwardJump(exit)
	c.popScope()
}

// returnStatement compiles `return expression;` or `return;`.
func (c *Compiler) returnStatement() {
	if c.check(token.SEMICOLON) {
		c.emitInstruction(op.PushEmptyTuple)
	} else {
		c.expression()
	}
	c.consume(token.SEMICOLON, "expected ';' after return value")
	c.emitDebugInstruction(op.DebugPopDebugFrame)
	c.emitInstruction(op.Return)
}
