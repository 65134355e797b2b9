// Package lexer tokenizes maestro source text.
package lexer

import (
	"fmt"
	"strings"

	"github.com/maestro-lang/maestro/token"
)

// Lexer produces tokens from a source string. It can be repositioned with
// Reset, which the compiler uses to suspend and resume source units.
type Lexer struct {
	input string
	pos   int
}

// New returns a Lexer positioned at the start of input.
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// Reset repositions the lexer at index within input.
func (l *Lexer) Reset(input string, index int) {
	l.input = input
	l.pos = index
}

// Index returns the byte offset of the next unread character.
func (l *Lexer) Index() int {
	return l.pos
}

// Next returns the next token. At end of input it returns an EOF token. A
// malformed token is returned as ILLEGAL along with an error describing it.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespaceAndComments()
	start := l.pos
	if l.pos >= len(l.input) {
		return l.token(token.EOF, start), nil
	}
	ch := l.input[l.pos]
	switch ch {
	case '=':
		l.pos++
		return l.token(token.ASSIGN, start), nil
	case ',':
		l.pos++
		return l.token(token.COMMA, start), nil
	case ';':
		l.pos++
		return l.token(token.SEMICOLON, start), nil
	case '|':
		l.pos++
		return l.token(token.PIPE, start), nil
	case '(':
		l.pos++
		return l.token(token.LPAREN, start), nil
	case ')':
		l.pos++
		return l.token(token.RPAREN, start), nil
	case '{':
		l.pos++
		return l.token(token.LBRACE, start), nil
	case '}':
		l.pos++
		return l.token(token.RBRACE, start), nil
	case '"':
		return l.readString()
	case '$':
		l.pos++
		if l.pos >= len(l.input) || !isLetter(l.input[l.pos]) {
			return l.token(token.ILLEGAL, start), fmt.Errorf("expected variable name after '$'")
		}
		l.readIdentifier()
		return l.token(token.VARIABLE, start), nil
	case '-', '+':
		if l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
			l.pos++
			return l.readNumber(start)
		}
	}
	if isDigit(ch) {
		return l.readNumber(start)
	}
	if isLetter(ch) {
		l.readIdentifier()
		tok := l.token(token.IDENT, start)
		tok.Type = token.LookupIdentifier(tok.Literal)
		return tok, nil
	}
	l.pos++
	return l.token(token.ILLEGAL, start), fmt.Errorf("unexpected character %q", ch)
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (token.Token, error) {
	saved := l.pos
	tok, err := l.Next()
	l.pos = saved
	return tok, err
}

// Tokens lexes the whole input, stopping at EOF or the first error.
func (l *Lexer) Tokens() ([]token.Token, error) {
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) token(t token.Type, start int) token.Token {
	return token.Token{
		Type:    t,
		Literal: l.input[start:l.pos],
		Slice:   token.Slice{Index: start, Length: l.pos - start},
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		switch ch := l.input[l.pos]; {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch == '#':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() {
	for l.pos < len(l.input) && (isLetter(l.input[l.pos]) || isDigit(l.input[l.pos])) {
		l.pos++
	}
}

func (l *Lexer) readNumber(start int) (token.Token, error) {
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	kind := token.INT
	if l.pos+1 < len(l.input) && l.input[l.pos] == '.' && isDigit(l.input[l.pos+1]) {
		kind = token.FLOAT
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && isLetter(l.input[l.pos]) {
		l.readIdentifier()
		return l.token(token.ILLEGAL, start), fmt.Errorf("invalid number literal %q", l.input[start:l.pos])
	}
	return l.token(kind, start), nil
}

// readString scans a double quoted string. The token literal holds the
// unescaped contents while the slice covers the quotes.
func (l *Lexer) readString() (token.Token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) || l.input[l.pos] == '\n' {
			return l.token(token.ILLEGAL, start), fmt.Errorf("unterminated string literal")
		}
		ch := l.input[l.pos]
		l.pos++
		switch ch {
		case '"':
			tok := l.token(token.STRING, start)
			tok.Literal = sb.String()
			return tok, nil
		case '\\':
			if l.pos >= len(l.input) {
				return l.token(token.ILLEGAL, start), fmt.Errorf("unterminated string literal")
			}
			esc := l.input[l.pos]
			l.pos++
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '"':
				sb.WriteByte(esc)
			default:
				return l.token(token.ILLEGAL, start), fmt.Errorf("invalid escape sequence '\\%c'", esc)
			}
		default:
			sb.WriteByte(ch)
		}
	}
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
