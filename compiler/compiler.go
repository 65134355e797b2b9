// Package compiler turns maestro source text into a bytecode Assembly.
//
// # Single-Pass Compilation
//
// Parsing drives code generation directly: there is no syntax tree. Each
// construct emits its instructions as soon as it is recognized, which means
// forward jumps are emitted with a placeholder distance and patched once the
// jump target is known:
//
//	placeholder := c.beginEmitForwardJump(op.IfConditionJump)
//	... then-branch ...
//	c.endEmitForwardJump(placeholder)
//
// Backward jumps remember the loop start before the loop body is emitted and
// compute the distance when the jump instruction itself is written.
//
// # Tuples
//
// Every expression leaves exactly one tuple on the stack: a run of values
// plus one entry on the VM's tuple-size stack. Statements consume the tuples
// their expressions produce, so the stack is balanced at every statement
// boundary. The only exception is the trailing expression statement of a
// command, whose tuple becomes the command's output.
//
// # Variables
//
// Variables live in stack slots relative to the frame of the command that
// declares them. A flat variable table is shared by all lexical scopes; each
// scope remembers where its variables begin, and leaving a block pops the
// values it declared.
//
// # Source Units
//
// BeginSource and EndSource suspend the current source unit and resume it
// later, so included files and library units compile into the same
// assembly while their code is inlined at the point of inclusion.
package compiler

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/maestro-lang/maestro/bytecode"
	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/internal/lexer"
	"github.com/maestro-lang/maestro/op"
	"github.com/maestro-lang/maestro/token"
)

// Mode selects whether debug instructions are emitted.
type Mode uint8

const (
	Release Mode = iota
	Debug
)

// NativeResolver reports the parameter count of host commands a program may
// declare with `external command`.
type NativeResolver interface {
	LookupNative(name string) (parameterCount int, ok bool)
}

// ModuleResolver returns compiled modules for `import` declarations.
type ModuleResolver interface {
	ResolveModule(name string) (*bytecode.Assembly, error)
}

// SourceLoader returns source text for `include` declarations.
type SourceLoader interface {
	LoadSource(uri string) (string, error)
}

// Config holds compiler configuration options.
type Config struct {
	// Name is recorded as the assembly name and used by importers.
	Name string

	// Mode selects release or debug code generation.
	Mode Mode

	// Natives validates `external command` declarations. When nil any
	// declaration is accepted as written.
	Natives NativeResolver

	// Modules resolves `import` declarations.
	Modules ModuleResolver

	// Sources resolves `include` declarations.
	Sources SourceLoader
}

// Compiler compiles source units into a single Assembly. A Compiler is used
// for one compilation and must not be reused.
type Compiler struct {
	mode     Mode
	assembly *bytecode.Assembly
	natives  NativeResolver
	modules  ModuleResolver
	loader   SourceLoader

	lexer       *lexer.Lexer
	previous    token.Token
	current     token.Token
	source      string
	uri         string
	sourceIndex int
	panicMode   bool
	braceDepth  int

	errors    *multierror.Error
	scopes    []scope
	variables []variable
	states    []state

	// imports holds the assembly of each entry in assembly.Dependencies.
	imports   []*bytecode.Assembly
	including []string
}

// state is a suspended source unit.
type state struct {
	source      string
	uri         string
	sourceIndex int
	lexerIndex  int
	previous    token.Token
	current     token.Token
	braceDepth  int
	scopeCount  int
	variables   int
}

// Compile compiles the given source units into an Assembly. The first unit
// is the main program; the others are compiled as library units ahead of it.
// On failure the returned error aggregates every CompileError and the
// returned assembly is incomplete.
func Compile(cfg *Config, sources ...bytecode.Source) (*bytecode.Assembly, error) {
	c := New(cfg)
	return c.Compile(sources...)
}

// New creates and returns a new Compiler. Pass nil for cfg to use defaults.
func New(cfg *Config) *Compiler {
	if cfg == nil {
		cfg = &Config{}
	}
	name := cfg.Name
	if name == "" {
		name = "main"
	}
	return &Compiler{
		mode:     cfg.Mode,
		assembly: bytecode.NewAssembly(name, cfg.Mode == Debug),
		natives:  cfg.Natives,
		modules:  cfg.Modules,
		loader:   cfg.Sources,
		lexer:    lexer.New(""),
	}
}

// Assembly returns the assembly being built.
func (c *Compiler) Assembly() *bytecode.Assembly {
	return c.assembly
}

// Compile runs the compilation. See the package level Compile.
func (c *Compiler) Compile(sources ...bytecode.Source) (*bytecode.Assembly, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("compiler: no source to compile")
	}
	main := sources[0]
	c.assembly.Sources = append(c.assembly.Sources, main)
	c.including = append(c.including, main.URI)
	c.BeginSource(main.URI, main.Content, 0)

	c.beginCommand(bytecode.EntryCommand, false, scopeEntry)
	for _, lib := range sources[1:] {
		c.compileUnit(lib)
	}
	hasResult := c.statements(token.EOF, true)
	c.endCommand(hasResult)

	c.EndSource()
	return c.assembly, c.errors.ErrorOrNil()
}

// compileUnit compiles src in place as a nested source unit.
func (c *Compiler) compileUnit(src bytecode.Source) {
	index := len(c.assembly.Sources)
	c.assembly.Sources = append(c.assembly.Sources, src)
	c.including = append(c.including, src.URI)
	c.BeginSource(src.URI, src.Content, index)
	c.pushScope(scopeSource)
	c.statements(token.EOF, false)
	c.popScope()
	c.EndSource()
	c.including = c.including[:len(c.including)-1]
}

// BeginSource suspends the current source unit, if any, and starts lexing
// content. Code emitted from now on is attributed to sourceIndex.
func (c *Compiler) BeginSource(uri, content string, sourceIndex int) {
	c.states = append(c.states, state{
		source:      c.source,
		uri:         c.uri,
		sourceIndex: c.sourceIndex,
		lexerIndex:  c.lexer.Index(),
		previous:    c.previous,
		current:     c.current,
		braceDepth:  c.braceDepth,
		scopeCount:  len(c.scopes),
		variables:   len(c.variables),
	})
	c.source = content
	c.uri = uri
	c.sourceIndex = sourceIndex
	c.braceDepth = 0
	c.previous = token.Token{}
	c.current = token.Token{}
	c.lexer.Reset(content, 0)
	c.markSourceRun()
	c.advance()
}

// EndSource resumes the source unit suspended by the matching BeginSource.
// When the outermost unit ends a Halt instruction terminates the code.
func (c *Compiler) EndSource() {
	s := c.states[len(c.states)-1]
	c.states = c.states[:len(c.states)-1]
	outermost := len(c.states) == 0
	if outermost {
		// Attributed to the last token of the finishing unit.
		c.emitInstruction(op.Halt)
	}
	c.source = s.source
	c.uri = s.uri
	c.sourceIndex = s.sourceIndex
	c.braceDepth = s.braceDepth
	c.previous = s.previous
	c.current = s.current
	c.lexer.Reset(s.source, s.lexerIndex)
	if len(c.scopes) > s.scopeCount {
		c.scopes = c.scopes[:s.scopeCount]
	}
	if len(c.variables) > s.variables {
		c.variables = c.variables[:s.variables]
	}
	if !outermost {
		c.markSourceRun()
	}
}

func (c *Compiler) markSourceRun() {
	runs := c.assembly.SourceRuns
	codeIndex := len(c.assembly.Bytes)
	if n := len(runs); n > 0 && runs[n-1].CodeIndex == codeIndex {
		runs[n-1].SourceIndex = c.sourceIndex
		return
	}
	c.assembly.SourceRuns = append(runs, bytecode.SourceRun{
		CodeIndex:   codeIndex,
		SourceIndex: c.sourceIndex,
	})
}

func (c *Compiler) newError(slice token.Slice, format string, args ...any) *errz.CompileError {
	return &errz.CompileError{
		SourceIndex: c.sourceIndex,
		Slice:       slice,
		Message:     fmt.Sprintf(format, args...),
		Location:    errz.LocationOf(c.uri, c.source, slice),
	}
}

// addSoftError records an error without disturbing parsing. Errors raised
// while recovering from a hard error are dropped.
func (c *Compiler) addSoftError(slice token.Slice, format string, args ...any) {
	if c.panicMode {
		return
	}
	c.errors = multierror.Append(c.errors, c.newError(slice, format, args...))
}

// addHardError records an error and enters panic mode until the next
// statement boundary.
func (c *Compiler) addHardError(slice token.Slice, format string, args ...any) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.errors = multierror.Append(c.errors, c.newError(slice, format, args...))
}

// synchronize leaves panic mode by skipping tokens up to a likely statement
// boundary.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for !c.check(token.EOF) {
		if c.previous.Type == token.SEMICOLON {
			return
		}
		switch c.current.Type {
		case token.LET, token.IF, token.WHILE, token.FOREACH, token.RETURN,
			token.COMMAND, token.EXPORT, token.EXTERNAL, token.IMPORT, token.INCLUDE:
			return
		case token.RBRACE:
			if c.braceDepth > 0 {
				return
			}
		}
		c.advance()
	}
}

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		tok, err := c.lexer.Next()
		if err == nil {
			c.current = tok
			break
		}
		c.addHardError(tok.Slice, "%s", err.Error())
	}
	switch c.previous.Type {
	case token.LBRACE:
		c.braceDepth++
	case token.RBRACE:
		if c.braceDepth > 0 {
			c.braceDepth--
		}
	}
}

func (c *Compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, format string, args ...any) bool {
	if c.match(t) {
		return true
	}
	c.addHardError(c.current.Slice, format, args...)
	return false
}

// peekType returns the type of the token after the current one.
func (c *Compiler) peekType() token.Type {
	tok, err := c.lexer.Peek()
	if err != nil {
		return token.ILLEGAL
	}
	return tok.Type
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of file"
	}
	return fmt.Sprintf("'%s'", tok.Literal)
}
