package pp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/linepp/pkg/expr"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, Int(42), ParseValue("42"))
	assert.Equal(t, Int(-3), ParseValue(" -3 "))
	assert.Equal(t, Text("4x"), ParseValue("4x"))
	assert.Equal(t, Text(""), ParseValue(""))
}

func TestMacro_Expand(t *testing.T) {
	m, err := NewMacro("ADD", []string{"a", "b"}, "a+b", false)
	require.NoError(t, err)

	out, err := m.Expand([]string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, "1+2", out)

	// Parameters are only replaced as whole tokens.
	m, err = NewMacro("F", []string{"x"}, "x xx 'x' /x/", false)
	require.NoError(t, err)
	out, err = m.Expand([]string{"y"})
	require.NoError(t, err)
	assert.Equal(t, "y xx 'x' /x/", out)
}

func TestMacro_ExpandArity(t *testing.T) {
	m, err := NewMacro("ADD", []string{"a", "b"}, "a+b", false)
	require.NoError(t, err)

	_, err = m.Expand([]string{"1"})
	var arity *ArityError
	require.True(t, errors.As(err, &arity))
	assert.Equal(t, 2, arity.Want)
	assert.Equal(t, 1, arity.Got)
}

func TestNewMacro_InvalidParams(t *testing.T) {
	_, err := NewMacro("F", []string{"a", "a"}, "", false)
	assert.Error(t, err)
	_, err = NewMacro("F", []string{"1a"}, "", false)
	assert.Error(t, err)
}

func TestContext_Reserved(t *testing.T) {
	ctx := NewContext()
	for _, k := range []string{KeyFile, KeyLine, KeyDirectory} {
		assert.True(t, ctx.Has(k), k)
		assert.False(t, ctx.Delete(k), k)
	}

	ctx.Set("X", Int(1))
	assert.True(t, ctx.Delete("X"))
	assert.False(t, ctx.Delete("X"))
	assert.Equal(t, []string{KeyDirectory, KeyFile, KeyLine}, ctx.Names())
}

func TestContext_Lookup(t *testing.T) {
	ctx := NewContext()
	ctx.Set("N", Int(3))
	ctx.Set("S", Text("abc"))
	m, err := NewMacro("M", []string{"x"}, "x", false)
	require.NoError(t, err)
	ctx.Set("M", m)

	v, ok := ctx.Lookup("N")
	require.True(t, ok)
	assert.Equal(t, expr.Int(3), v)

	v, ok = ctx.Lookup("S")
	require.True(t, ok)
	assert.Equal(t, expr.String("abc"), v)

	v, ok = ctx.Lookup("M")
	require.True(t, ok)
	assert.Equal(t, expr.Bool(true), v)

	_, ok = ctx.Lookup("missing")
	assert.False(t, ok)
}

func TestContext_Update(t *testing.T) {
	a, b := NewContext(), NewContext()
	b.Set("X", Text("x"))
	a.Update(b)
	v, ok := a.Get("X")
	require.True(t, ok)
	assert.Equal(t, "x", v.String())
}
