// Package pp implements a line-oriented text preprocessor: directive
// dispatch, conditional blocks, macro definition and expansion, and a
// pipeline of line filters.
package pp

import (
	"strings"
	"unicode/utf8"
)

// TokenKind represents the kind of a lexer token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokSpace
	TokString
	TokRegexp
	TokNumber
	TokIdent
	TokPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokSpace:
		return "SPACE"
	case TokString:
		return "STRING"
	case TokRegexp:
		return "REGEXP"
	case TokNumber:
		return "NUMBER"
	case TokIdent:
		return "IDENT"
	case TokPunct:
		return "PUNCT"
	default:
		return "UNKNOWN"
	}
}

// Token is an indivisible piece of a line.
type Token struct {
	Kind TokenKind
	Text string
}

// Lexer splits a single line into tokens. It only knows enough about
// literals to keep macro substitution and comment stripping from looking
// inside strings; it never fails.
type Lexer struct {
	input       string
	pos         int
	matchRegexp bool
}

// NewLexer creates a lexer over line. When matchRegexp is set, /.../ is
// scanned as a regular expression literal if a closing slash exists.
func NewLexer(line string, matchRegexp bool) *Lexer {
	return &Lexer{input: line, matchRegexp: matchRegexp}
}

// Done reports whether all input has been consumed.
func (l *Lexer) Done() bool {
	return l.pos >= len(l.input)
}

// Next consumes and returns the next token, or a TokEOF token.
func (l *Lexer) Next() Token {
	if l.Done() {
		return Token{TokEOF, ""}
	}
	start := l.pos
	c := l.input[l.pos]

	switch {
	case isSpace(c):
		l.pos++
		for !l.Done() && isSpace(l.input[l.pos]) {
			l.pos++
		}
		return Token{TokSpace, l.input[start:l.pos]}

	case c == '\'' || c == '"':
		l.pos++
		l.scanQuoted(c)
		return Token{TokString, l.input[start:l.pos]}

	case c == '/' && l.matchRegexp:
		l.pos++
		checkpoint := l.pos
		if l.scanQuoted('/') {
			return Token{TokRegexp, l.input[start:l.pos]}
		}
		// No closing slash: it was division or a lone slash after all.
		l.pos = checkpoint
		return Token{TokPunct, "/"}

	case isDigit(c):
		l.pos++
		for !l.Done() && isDigit(l.input[l.pos]) {
			l.pos++
		}
		return Token{TokNumber, l.input[start:l.pos]}

	case isIdentChar(c, true):
		l.pos++
		for !l.Done() && isIdentChar(l.input[l.pos], false) {
			l.pos++
		}
		return Token{TokIdent, l.input[start:l.pos]}
	}

	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return Token{TokPunct, l.input[start:l.pos]}
}

// scanQuoted advances past a literal whose opening delimiter q has
// already been consumed. A backslash only escapes the delimiter itself.
// It reports whether the closing delimiter was found.
func (l *Lexer) scanQuoted(q byte) bool {
	for !l.Done() {
		c := l.input[l.pos]
		l.pos++
		if c == '\\' && !l.Done() && l.input[l.pos] == q {
			l.pos++
			continue
		}
		if c == q {
			return true
		}
	}
	return false
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	save := l.pos
	tok := l.Next()
	l.pos = save
	return tok
}

// Rest consumes the remaining input and returns it unchanged.
func (l *Lexer) Rest() string {
	rest := l.input[l.pos:]
	l.pos = len(l.input)
	return rest
}

// Tokenize returns every token of line.
func Tokenize(line string, matchRegexp bool) []Token {
	l := NewLexer(line, matchRegexp)
	var tokens []Token
	for tok := l.Next(); tok.Kind != TokEOF; tok = l.Next() {
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokensToString converts a slice of tokens back to text.
func TokensToString(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

// IsIdent reports whether s is a valid identifier: a letter, '_' or '$'
// followed by letters, digits, '_' or '$'.
func IsIdent(s string) bool {
	if s == "" || !isIdentChar(s[0], true) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i], false) {
			return false
		}
	}
	return true
}

func isIdentChar(c byte, start bool) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		c == '_' || c == '$' ||
		(!start && isDigit(c))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
