package pp

import (
	"path/filepath"
	"sort"

	"github.com/raymyers/linepp/pkg/expr"
)

// Reserved context keys describing the input being processed.
const (
	KeyFile      = "FILE"
	KeyLine      = "LINE"
	KeyDirectory = "DIRECTORY"
)

// Context holds the variables and macros visible to directives and
// filters. The reserved keys are always present.
type Context struct {
	vars map[string]Value
}

// NewContext returns a context holding only the reserved keys, with the
// directory set to the working directory.
func NewContext() *Context {
	dir, err := filepath.Abs(".")
	if err != nil {
		dir = "."
	}
	return &Context{vars: map[string]Value{
		KeyFile:      Text(""),
		KeyLine:      Int(0),
		KeyDirectory: Text(dir),
	}}
}

func isReserved(name string) bool {
	return name == KeyFile || name == KeyLine || name == KeyDirectory
}

// Get returns the value bound to name.
func (c *Context) Get(name string) (Value, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Has reports whether name is bound.
func (c *Context) Has(name string) bool {
	_, ok := c.vars[name]
	return ok
}

// Set binds name to v, replacing any previous binding.
func (c *Context) Set(name string, v Value) {
	c.vars[name] = v
}

// Delete removes name. Reserved keys cannot be removed; Delete reports
// whether a binding was removed.
func (c *Context) Delete(name string) bool {
	if isReserved(name) {
		return false
	}
	if _, ok := c.vars[name]; !ok {
		return false
	}
	delete(c.vars, name)
	return true
}

// Names returns all bound names in sorted order.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Update copies every binding of other into c.
func (c *Context) Update(other *Context) {
	for k, v := range other.vars {
		c.vars[k] = v
	}
}

// File returns the path of the input being processed.
func (c *Context) File() string { return c.vars[KeyFile].String() }

// Dir returns the directory relative includes are resolved against.
func (c *Context) Dir() string { return c.vars[KeyDirectory].String() }

// Line returns the current 1-based logical line number.
func (c *Context) Line() int {
	if n, ok := c.vars[KeyLine].(Int); ok {
		return int(n)
	}
	return 0
}

func (c *Context) setFile(file, dir string) {
	c.vars[KeyFile] = Text(file)
	c.vars[KeyDirectory] = Text(dir)
}

func (c *Context) setLine(n int) {
	c.vars[KeyLine] = Int(n)
}

// Lookup implements expr.Env. Macros evaluate to true.
func (c *Context) Lookup(name string) (expr.Value, bool) {
	v, ok := c.vars[name]
	if !ok {
		return expr.Value{}, false
	}
	switch v := v.(type) {
	case Int:
		return expr.Int(int64(v)), true
	case Text:
		return expr.String(string(v)), true
	case *Macro:
		return expr.Bool(true), true
	}
	return expr.Value{}, false
}
