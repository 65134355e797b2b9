package lexer

import (
	"testing"

	"github.com/maestro-lang/maestro/token"
	"github.com/stretchr/testify/require"
)

func TestNextToken(t *testing.T) {
	input := `let $a = 1, -2.5 | bypass "x\"y"; # trailing
forEach $e in input { print $e; }`

	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.LET, "let"},
		{token.VARIABLE, "$a"},
		{token.ASSIGN, "="},
		{token.INT, "1"},
		{token.COMMA, ","},
		{token.FLOAT, "-2.5"},
		{token.PIPE, "|"},
		{token.IDENT, "bypass"},
		{token.STRING, `x"y`},
		{token.SEMICOLON, ";"},
		{token.FOREACH, "forEach"},
		{token.VARIABLE, "$e"},
		{token.IN, "in"},
		{token.INPUT, "input"},
		{token.LBRACE, "{"},
		{token.IDENT, "print"},
		{token.VARIABLE, "$e"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.Next()
		require.NoError(t, err)
		require.Equal(t, tt.expectedType, tok.Type, "tests[%d]", i)
		require.Equal(t, tt.expectedLiteral, tok.Literal, "tests[%d]", i)
	}
}

func TestSlices(t *testing.T) {
	l := New(`  print "ab";`)
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, token.Slice{Index: 2, Length: 5}, tok.Slice)
	tok, err = l.Next()
	require.NoError(t, err)
	require.Equal(t, token.Slice{Index: 8, Length: 4}, tok.Slice)
	require.Equal(t, "ab", tok.Literal)
}

func TestReset(t *testing.T) {
	l := New("a b c")
	_, err := l.Next()
	require.NoError(t, err)
	resume := l.Index()

	l.Reset("1 2", 0)
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, token.INT, tok.Type)

	l.Reset("a b c", resume)
	tok, err = l.Next()
	require.NoError(t, err)
	require.Equal(t, "b", tok.Literal)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{`"abc`, "unterminated string literal"},
		{`$`, "expected variable name after '$'"},
		{`@`, "unexpected character '@'"},
		{`12ab`, `invalid number literal "12ab"`},
		{`"\q"`, `invalid escape sequence '\q'`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok, err := New(tt.input).Next()
			require.Error(t, err)
			require.Equal(t, tt.msg, err.Error())
			require.Equal(t, token.ILLEGAL, tok.Type)
		})
	}
}

func TestTokens(t *testing.T) {
	tokens, err := New("# only a comment\n").Tokens()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, token.EOF, tokens[0].Type)
}
