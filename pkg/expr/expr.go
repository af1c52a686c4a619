// Package expr evaluates the conditions of #if and #elif directives.
//
// Grammar:
//
//	or      := and ( "||" or )?
//	and     := equal ( "&&" and )?
//	equal   := unary ( ( "==" | "!=" ) unary )?
//	unary   := "!"? primary
//	primary := number | "defined" "(" ident ")" | ident | "(" or ")"
//
// Identifiers are made of letters, digits, '_' and '$'. An identifier
// evaluates to its value in the environment, or to its own name as a
// string when it is not defined.
package expr

import (
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
)

// Value is the result of evaluating an expression or a sub-expression.
type Value struct {
	Kind Kind
	Int  int64
	Bool bool
	Str  string
}

// Int returns an integer value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Truthy reports whether v counts as true inside an expression. Callers
// deciding whether a branch is taken should use IsTrue instead.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInt:
		return v.Int != 0
	case KindBool:
		return v.Bool
	default:
		return v.Str != ""
	}
}

// IsTrue reports whether v selects a conditional branch. String results
// never do: a bare undefined name evaluates to its own name.
func (v Value) IsTrue() bool {
	if v.Kind == KindString {
		return false
	}
	return v.Truthy()
}

func (v Value) numeric() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Equal compares two values. Integers and booleans compare numerically,
// strings compare with strings, and mixed kinds are never equal.
func (v Value) Equal(o Value) bool {
	if a, ok := v.numeric(); ok {
		b, ok := o.numeric()
		return ok && a == b
	}
	return o.Kind == KindString && v.Str == o.Str
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return v.Str
	}
}

// Env resolves identifiers during evaluation.
type Env interface {
	Lookup(name string) (Value, bool)
}

// MapEnv is an Env backed by a map.
type MapEnv map[string]Value

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// SyntaxError reports malformed expression text.
type SyntaxError struct {
	Text   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d in %q", e.Msg, e.Offset, e.Text)
}

// Evaluator evaluates condition text against an environment.
type Evaluator interface {
	Evaluate(text string, env Env) (Value, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(text string, env Env) (Value, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(text string, env Env) (Value, error) {
	return f(text, env)
}

// Default is the evaluator for the grammar described in the package docs.
var Default Evaluator = EvaluatorFunc(Evaluate)

// Evaluate parses and evaluates text.
func Evaluate(text string, env Env) (Value, error) {
	tokens, err := scan(text)
	if err != nil {
		return Value{}, err
	}
	if env == nil {
		env = MapEnv(nil)
	}
	p := &parser{text: text, tokens: tokens, env: env}
	v, err := p.parseOr()
	if err != nil {
		return Value{}, err
	}
	if p.pos < len(p.tokens) {
		return Value{}, p.errorf("unexpected %q", p.peek().text)
	}
	return v, nil
}
