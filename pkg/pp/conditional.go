// conditional.go implements the #if/#ifdef/#else/#endif state machine.
package pp

import "fmt"

// ifState is the phase of one open conditional block.
type ifState int

const (
	stateHadTrue   ifState = iota // a branch of this block was taken
	stateWantsTrue                // still looking for a true branch
	stateInElse                   // #else seen, no more branches
	stateSkipped                  // opened inside an inactive region
)

func (s ifState) String() string {
	switch s {
	case stateHadTrue:
		return "had-true"
	case stateWantsTrue:
		return "wants-true"
	case stateInElse:
		return "in-else"
	case stateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Conditional tracks nested conditional blocks. The disable counter is
// zero while lines are emitted; one means the innermost block is the
// one suppressing output; higher values count blocks nested inside an
// inactive region.
type Conditional struct {
	disable int
	stack   []ifState
	warn    func(msg string)
}

// NewConditional creates an empty state machine. warn receives non-fatal
// nesting problems and may be nil.
func NewConditional(warn func(msg string)) *Conditional {
	if warn == nil {
		warn = func(string) {}
	}
	return &Conditional{warn: warn}
}

// Active reports whether ordinary lines should be emitted.
func (c *Conditional) Active() bool {
	return c.disable == 0
}

// Disabled returns the suppression depth.
func (c *Conditional) Disabled() int {
	return c.disable
}

// Depth returns the number of open blocks.
func (c *Conditional) Depth() int {
	return len(c.stack)
}

// Open handles #if, #ifdef and #ifndef. Inside an inactive region the
// condition is never evaluated.
func (c *Conditional) Open(cond func() (bool, error)) error {
	if c.disable > 0 {
		c.disable++
		c.stack = append(c.stack, stateSkipped)
		return nil
	}
	taken, err := cond()
	if err != nil {
		return err
	}
	if taken {
		c.stack = append(c.stack, stateHadTrue)
		return nil
	}
	c.disable = 1
	c.stack = append(c.stack, stateWantsTrue)
	return nil
}

// Elif handles #elif, #elifdef and #elifndef.
func (c *Conditional) Elif(cond func() (bool, error)) error {
	if len(c.stack) == 0 {
		c.warn("bad nesting of #elif")
		return nil
	}
	top := len(c.stack) - 1
	switch {
	case c.disable > 1:
		return nil
	case c.disable == 0:
		c.doElse(c.stack[top])
		return nil
	}
	if c.stack[top] == stateInElse {
		c.warn("#elif after #else")
	}
	if c.stack[top] != stateWantsTrue {
		return nil
	}
	taken, err := cond()
	if err != nil {
		return err
	}
	if taken {
		c.disable = 0
		c.stack[top] = stateHadTrue
	}
	return nil
}

// Else handles #else.
func (c *Conditional) Else() {
	if len(c.stack) == 0 {
		c.warn("bad nesting of #else")
		return
	}
	if c.disable > 1 {
		return
	}
	c.doElse(stateInElse)
}

func (c *Conditional) doElse(next ifState) {
	top := len(c.stack) - 1
	prev := c.stack[top]
	if prev == stateInElse {
		c.warn("bad nesting of #else")
	}
	c.stack[top] = next
	if prev == stateWantsTrue {
		c.disable = 0
		return
	}
	c.disable = 1
}

// Endif handles #endif.
func (c *Conditional) Endif() {
	if len(c.stack) == 0 {
		c.warn("#endif without matching #if")
		return
	}
	if c.disable > 0 {
		c.disable--
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// CheckBalanced returns an error describing unclosed blocks.
func (c *Conditional) CheckBalanced() error {
	if len(c.stack) > 0 {
		return fmt.Errorf("unterminated conditional directive, %d level(s) unclosed", len(c.stack))
	}
	return nil
}
