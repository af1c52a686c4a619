package expr

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

func scan(text string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(text) && text[i] >= '0' && text[i] <= '9' {
				i++
			}
			tokens = append(tokens, token{tokNumber, text[start:i], start})
		case isWordChar(c):
			start := i
			for i < len(text) && isWordChar(text[i]) {
				i++
			}
			tokens = append(tokens, token{tokIdent, text[start:i], start})
		default:
			if i+1 < len(text) {
				switch two := text[i : i+2]; two {
				case "||", "&&", "==", "!=":
					tokens = append(tokens, token{tokOp, two, i})
					i += 2
					continue
				}
			}
			switch c {
			case '!', '(', ')':
				tokens = append(tokens, token{tokOp, string(c), i})
				i++
			default:
				return nil, &SyntaxError{Text: text, Offset: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
		}
	}
	return tokens, nil
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '$'
}

type parser struct {
	text   string
	tokens []token
	pos    int
	env    Env
}

func (p *parser) peek() token {
	if p.pos >= len(p.tokens) {
		return token{kind: tokOp, offset: len(p.text)}
	}
	return p.tokens[p.pos]
}

func (p *parser) match(op string) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokOp && p.tokens[p.pos].text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Text: p.text, Offset: p.peek().offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (Value, error) {
	left, err := p.parseAnd()
	if err != nil {
		return Value{}, err
	}
	if !p.match("||") {
		return left, nil
	}
	right, err := p.parseOr()
	if err != nil {
		return Value{}, err
	}
	if left.Truthy() {
		return left, nil
	}
	return right, nil
}

func (p *parser) parseAnd() (Value, error) {
	left, err := p.parseEqual()
	if err != nil {
		return Value{}, err
	}
	if !p.match("&&") {
		return left, nil
	}
	right, err := p.parseAnd()
	if err != nil {
		return Value{}, err
	}
	if !left.Truthy() {
		return left, nil
	}
	return right, nil
}

func (p *parser) parseEqual() (Value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return Value{}, err
	}
	switch {
	case p.match("=="):
		right, err := p.parseUnary()
		if err != nil {
			return Value{}, err
		}
		return Bool(left.Equal(right)), nil
	case p.match("!="):
		right, err := p.parseUnary()
		if err != nil {
			return Value{}, err
		}
		return Bool(!left.Equal(right)), nil
	}
	return left, nil
}

func (p *parser) parseUnary() (Value, error) {
	if p.match("!") {
		v, err := p.parsePrimary()
		if err != nil {
			return Value{}, err
		}
		return Bool(!v.Truthy()), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Value, error) {
	if p.pos >= len(p.tokens) {
		return Value{}, p.errorf("unexpected end of expression")
	}
	tok := p.tokens[p.pos]

	switch tok.kind {
	case tokNumber:
		p.pos++
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return Value{}, &SyntaxError{Text: p.text, Offset: tok.offset, Msg: err.Error()}
		}
		return Int(n), nil

	case tokIdent:
		p.pos++
		if tok.text == "defined" && p.match("(") {
			name := p.peek()
			if name.kind != tokIdent {
				return Value{}, p.errorf("defined() requires an identifier")
			}
			p.pos++
			if !p.match(")") {
				return Value{}, p.errorf("missing ) in defined()")
			}
			_, ok := p.env.Lookup(name.text)
			return Bool(ok), nil
		}
		if v, ok := p.env.Lookup(tok.text); ok {
			return v, nil
		}
		return String(tok.text), nil

	default:
		if p.match("(") {
			v, err := p.parseOr()
			if err != nil {
				return Value{}, err
			}
			if !p.match(")") {
				return Value{}, p.errorf("expected ')'")
			}
			return v, nil
		}
		return Value{}, p.errorf("unexpected %q", tok.text)
	}
}
