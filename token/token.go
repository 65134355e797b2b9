// Package token defines language keywords and tokens used when lexing source code.
package token

// Type describes the type of a token as a string.
type Type string

// Slice is a half-open range (Index, Index+Length) into source text or into
// a run of stack slots.
type Slice struct {
	Index  int
	Length int
}

// End returns the exclusive end index of the slice.
func (s Slice) End() int {
	return s.Index + s.Length
}

// Contains reports whether index falls inside the slice.
func (s Slice) Contains(index int) bool {
	return index >= s.Index && index < s.End()
}

// Join returns the smallest slice covering both s and other.
func (s Slice) Join(other Slice) Slice {
	start, end := s.Index, s.End()
	if other.Index < start {
		start = other.Index
	}
	if other.End() > end {
		end = other.End()
	}
	return Slice{Index: start, Length: end - start}
}

// Token represents one token lexed from the input source code.
type Token struct {
	Type    Type
	Literal string
	Slice   Slice
}

// Token types
const (
	ASSIGN    Type = "="
	COMMA     Type = ","
	EOF       Type = "EOF"
	FLOAT     Type = "FLOAT"
	IDENT     Type = "IDENT"
	ILLEGAL   Type = "ILLEGAL"
	INT       Type = "INT"
	LBRACE    Type = "{"
	LPAREN    Type = "("
	PIPE      Type = "|"
	RBRACE    Type = "}"
	RPAREN    Type = ")"
	SEMICOLON Type = ";"
	STRING    Type = "STRING"
	VARIABLE  Type = "VARIABLE"

	COMMAND  Type = "COMMAND"
	ELSE     Type = "ELSE"
	EXPORT   Type = "EXPORT"
	EXTERNAL Type = "EXTERNAL"
	FALSE    Type = "FALSE"
	FOREACH  Type = "FOREACH"
	IF       Type = "IF"
	IMPORT   Type = "IMPORT"
	IN       Type = "IN"
	INCLUDE  Type = "INCLUDE"
	INPUT    Type = "INPUT"
	LET      Type = "LET"
	NULL     Type = "NULL"
	RETURN   Type = "RETURN"
	TRUE     Type = "TRUE"
	WHILE    Type = "WHILE"
)

// Reserved keywords
var keywords = map[string]Type{
	"command":  COMMAND,
	"else":     ELSE,
	"export":   EXPORT,
	"external": EXTERNAL,
	"false":    FALSE,
	"forEach":  FOREACH,
	"if":       IF,
	"import":   IMPORT,
	"in":       IN,
	"include":  INCLUDE,
	"input":    INPUT,
	"let":      LET,
	"null":     NULL,
	"return":   RETURN,
	"true":     TRUE,
	"while":    WHILE,
}

// LookupIdentifier returns the keyword type for identifier, or IDENT.
func LookupIdentifier(identifier string) Type {
	if tok, ok := keywords[identifier]; ok {
		return tok
	}
	return IDENT
}
