package pp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		regexp bool
		want   []Token
	}{
		{
			name:  "identifiers and spaces",
			input: "foo  bar_1\n",
			want: []Token{
				{TokIdent, "foo"}, {TokSpace, "  "}, {TokIdent, "bar_1"}, {TokSpace, "\n"},
			},
		},
		{
			name:  "dollar identifier and number",
			input: "$x=42",
			want:  []Token{{TokIdent, "$x"}, {TokPunct, "="}, {TokNumber, "42"}},
		},
		{
			name:  "double quoted string with escaped quote",
			input: `"a \" b" c`,
			want:  []Token{{TokString, `"a \" b"`}, {TokSpace, " "}, {TokIdent, "c"}},
		},
		{
			name:  "single quoted string",
			input: `'it'`,
			want:  []Token{{TokString, `'it'`}},
		},
		{
			name:  "unterminated string runs to end",
			input: `x "abc`,
			want:  []Token{{TokIdent, "x"}, {TokSpace, " "}, {TokString, `"abc`}},
		},
		{
			name:   "regexp literal",
			input:  "a /b c/ d",
			regexp: true,
			want: []Token{
				{TokIdent, "a"}, {TokSpace, " "}, {TokRegexp, "/b c/"}, {TokSpace, " "}, {TokIdent, "d"},
			},
		},
		{
			name:   "lone slash falls back to punct",
			input:  "a / b",
			regexp: true,
			want: []Token{
				{TokIdent, "a"}, {TokSpace, " "}, {TokPunct, "/"}, {TokSpace, " "}, {TokIdent, "b"},
			},
		},
		{
			name:  "slash without regexp mode",
			input: "/b/",
			want:  []Token{{TokPunct, "/"}, {TokIdent, "b"}, {TokPunct, "/"}},
		},
		{
			name:  "multibyte punct",
			input: "é",
			want:  []Token{{TokPunct, "é"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input, tt.regexp)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
			if s := TokensToString(got); s != tt.input {
				t.Errorf("TokensToString = %q, want %q", s, tt.input)
			}
		})
	}
}

func TestLexer_PeekAndRest(t *testing.T) {
	l := NewLexer("a(b) rest", false)
	if tok := l.Peek(); tok.Text != "a" {
		t.Fatalf("Peek = %q, want a", tok.Text)
	}
	if tok := l.Next(); tok.Text != "a" {
		t.Fatalf("Next = %q, want a", tok.Text)
	}
	l.Next()
	if rest := l.Rest(); rest != "b) rest" {
		t.Errorf("Rest = %q", rest)
	}
	if !l.Done() {
		t.Error("expected lexer to be done")
	}
	if tok := l.Next(); tok.Kind != TokEOF {
		t.Errorf("Next after Rest = %v, want EOF", tok.Kind)
	}
}

func TestIsIdent(t *testing.T) {
	tests := map[string]bool{
		"foo":  true,
		"_x1":  true,
		"$":    true,
		"1abc": false,
		"":     false,
		"a-b":  false,
	}
	for in, want := range tests {
		if got := IsIdent(in); got != want {
			t.Errorf("IsIdent(%q) = %v, want %v", in, got, want)
		}
	}
}
