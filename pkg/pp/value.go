package pp

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a context entry: an Int, a Text or a *Macro.
type Value interface {
	String() string
	isValue()
}

// Int is an integer context value.
type Int int64

// Text is a string context value.
type Text string

func (i Int) String() string  { return strconv.FormatInt(int64(i), 10) }
func (t Text) String() string { return string(t) }

func (Int) isValue()    {}
func (Text) isValue()   {}
func (*Macro) isValue() {}

// ParseValue returns s as an Int when it is a base-10 integer (surrounding
// whitespace allowed) and as a Text otherwise.
func ParseValue(s string) Value {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return Int(n)
	}
	return Text(s)
}

// Macro is a function-like macro. Meta macros have their expansion fed
// back through the directive dispatcher.
type Macro struct {
	Name   string
	Params []string
	Body   string
	Meta   bool
}

// NewMacro validates params and returns a macro.
func NewMacro(name string, params []string, body string, meta bool) (*Macro, error) {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if !IsIdent(p) {
			return nil, fmt.Errorf("invalid parameter %q", p)
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate parameter %q", p)
		}
		seen[p] = true
	}
	return &Macro{Name: name, Params: params, Body: body, Meta: meta}, nil
}

// String returns the macro body.
func (m *Macro) String() string { return m.Body }

// ArityError is returned when a macro is invoked with the wrong number of
// arguments.
type ArityError struct {
	Name string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("macro %s takes %d argument(s), got %d", e.Name, e.Want, e.Got)
}

// Expand substitutes args for the parameters in the body. The result is
// not expanded again.
func (m *Macro) Expand(args []string) (string, error) {
	if len(args) != len(m.Params) {
		return "", &ArityError{Name: m.Name, Want: len(m.Params), Got: len(args)}
	}
	subst := make(map[string]string, len(args))
	for i, p := range m.Params {
		subst[p] = args[i]
	}

	var sb strings.Builder
	lex := NewLexer(m.Body, true)
	for tok := lex.Next(); tok.Kind != TokEOF; tok = lex.Next() {
		if arg, ok := subst[tok.Text]; ok {
			sb.WriteString(arg)
		} else {
			sb.WriteString(tok.Text)
		}
	}
	return sb.String(), nil
}

// splitParams splits a comma separated parameter or argument list,
// trimming each element.
func splitParams(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
