package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, input string) []Token {
	t.Helper()
	s := New(input)
	var toks []Token
	for {
		tok, err := s.Scan()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return toks
}

func TestStreamBasicPunctuation(t *testing.T) {
	toks := scanAll(t, "{}[](),:.$@-+*/%")
	kinds := make([]Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []Kind{
		OpenBrace, CloseBrace, OpenBracket, CloseBracket, OpenParen, CloseParen,
		Comma, Colon, Dot, Dollar, At, Minus, Plus, Asterisk, Slash, Percent, EOF,
	}, kinds)
}

func TestStreamComparisonOperators(t *testing.T) {
	toks := scanAll(t, "= != > >= < <=")
	kinds := make([]Kind, 0, len(toks))
	for _, tok := range toks {
		if tok.Kind != EOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	assert.Equal(t, []Kind{Equals, NotEquals, Greater, GreaterOrEquals, Less, LessOrEquals}, kinds)
}

func TestStreamWordsAndNumbers(t *testing.T) {
	toks := scanAll(t, "name AND 42 3.14 1e10")
	require.Len(t, toks, 6)
	assert.Equal(t, Word, toks[0].Kind)
	assert.Equal(t, "name", toks[0].Value)
	assert.Equal(t, Word, toks[1].Kind)
	assert.Equal(t, "AND", toks[1].Value)
	assert.Equal(t, Int, toks[2].Kind)
	assert.Equal(t, "42", toks[2].Value)
	assert.Equal(t, Double, toks[3].Kind)
	assert.Equal(t, "3.14", toks[3].Value)
	assert.Equal(t, Double, toks[4].Kind)
	assert.Equal(t, "1e10", toks[4].Value)
}

func TestStreamStringLiterals(t *testing.T) {
	toks := scanAll(t, `'hello' "world" 'a\'b' "say \"hi\""`)
	require.Len(t, toks, 5)
	assert.Equal(t, "hello", toks[0].Value)
	assert.Equal(t, "world", toks[1].Value)
	assert.Equal(t, "a'b", toks[2].Value)
	assert.Equal(t, `say "hi"`, toks[3].Value)
}

func TestStreamUnterminatedString(t *testing.T) {
	s := New(`'hello`)
	_, err := s.Scan()
	require.Error(t, err)
}

func TestStreamIllegalCharacter(t *testing.T) {
	s := New(`#`)
	_, err := s.Scan()
	require.Error(t, err)
}

func TestStreamNestedComments(t *testing.T) {
	toks := scanAll(t, "a /* outer /* inner */ still outer */ b")
	require.Len(t, toks, 3)
	assert.Equal(t, "a", toks[0].Value)
	assert.Equal(t, "b", toks[1].Value)
}

func TestStreamPeekDoesNotConsume(t *testing.T) {
	s := New("a.b")
	p1, err := s.Peek()
	require.NoError(t, err)
	p2, err := s.Peek()
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	tok, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, p1, tok)
}

func TestStreamExpectMismatch(t *testing.T) {
	s := New("a")
	_, err := s.Expect(Dot)
	require.Error(t, err)
}

func TestStreamEOFPositionEqualsInputLength(t *testing.T) {
	s := New("abc")
	for i := 0; i < 1; i++ {
		_, _ = s.Scan()
	}
	var tok Token
	for {
		var err error
		tok, err = s.Scan()
		require.NoError(t, err)
		if tok.Kind == EOF {
			break
		}
	}
	assert.Equal(t, len("abc"), tok.Position)
}
