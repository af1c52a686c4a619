// filter.go implements the line filters and their ordering.
package pp

import (
	"regexp"
	"sort"
	"strings"
)

// FilterFunc rewrites one output line.
type FilterFunc func(p *Preprocessor, line string) (string, error)

type filterSpec struct {
	priority int
	fn       FilterFunc
}

type activeFilter struct {
	name string
	filterSpec
}

// Filters that could corrupt each other's input must run in a fixed
// order: comments are stripped first (slashslash before slashstar, or a
// "// /*" would open a comment that never closes), substitution comes
// late and macros last.
const (
	prioritySlashSlash   = 0
	prioritySlashStar    = 10
	priorityDefault      = 50
	prioritySubstitution = 100
	priorityMacros       = 200
)

func lookupFilter(name string) (filterSpec, bool) {
	switch name {
	case "slashslash":
		return filterSpec{prioritySlashSlash, (*Preprocessor).filterSlashSlash}, true
	case "slashstar":
		return filterSpec{prioritySlashStar, (*Preprocessor).filterSlashStar}, true
	case "emptyLines":
		return filterSpec{priorityDefault, (*Preprocessor).filterEmptyLines}, true
	case "spaces":
		return filterSpec{priorityDefault, (*Preprocessor).filterSpaces}, true
	case "substitution":
		return filterSpec{prioritySubstitution, (*Preprocessor).filterSubstitution}, true
	case "attemptSubstitution":
		return filterSpec{prioritySubstitution, (*Preprocessor).filterAttemptSubstitution}, true
	case "macros":
		return filterSpec{priorityMacros, (*Preprocessor).filterMacros}, true
	}
	return filterSpec{}, false
}

// FilterNames lists every filter that can be enabled.
func FilterNames() []string {
	return []string{"attemptSubstitution", "emptyLines", "macros", "slashslash", "slashstar", "spaces", "substitution"}
}

// EnableFilters turns on the named filters. Unknown names are ignored.
func (p *Preprocessor) EnableFilters(names ...string) {
	current := p.currentFilters()
	changed := false
	for _, name := range names {
		spec, ok := lookupFilter(name)
		if !ok {
			p.logger.Debug("ignoring unknown filter", "filter", name)
			continue
		}
		current[name] = spec
		changed = true
	}
	if changed {
		p.setFilters(current)
	}
}

// DisableFilters turns off the named filters.
func (p *Preprocessor) DisableFilters(names ...string) {
	current := p.currentFilters()
	for _, name := range names {
		delete(current, name)
	}
	p.setFilters(current)
}

// Filters returns the names of the active filters in application order.
func (p *Preprocessor) Filters() []string {
	names := make([]string, len(p.filters))
	for i, f := range p.filters {
		names[i] = f.name
	}
	return names
}

func (p *Preprocessor) currentFilters() map[string]filterSpec {
	current := make(map[string]filterSpec, len(p.filters))
	for _, f := range p.filters {
		current[f.name] = f.filterSpec
	}
	return current
}

func (p *Preprocessor) setFilters(current map[string]filterSpec) {
	filters := make([]activeFilter, 0, len(current))
	for name, spec := range current {
		filters = append(filters, activeFilter{name, spec})
	}
	sort.Slice(filters, func(i, j int) bool {
		if filters[i].priority != filters[j].priority {
			return filters[i].priority < filters[j].priority
		}
		return filters[i].name < filters[j].name
	})
	p.filters = filters
	p.logger.Debug("filters changed", "filters", p.Filters())
}

func (p *Preprocessor) applyFilters(line string) (string, error) {
	var err error
	for _, f := range p.filters {
		if line, err = f.fn(p, line); err != nil {
			return "", err
		}
	}
	return line, nil
}

// filterEmptyLines drops lines consisting of a bare newline.
func (p *Preprocessor) filterEmptyLines(line string) (string, error) {
	if line == "\n" {
		return "", nil
	}
	return line, nil
}

// filterSlashSlash strips everything from the first unescaped //.
func (p *Preprocessor) filterSlashSlash(line string) (string, error) {
	for i := 0; i+1 < len(line); i++ {
		if line[i] != '/' || line[i+1] != '/' || (i > 0 && line[i-1] == '\\') {
			continue
		}
		out := line[:i]
		if i+2 < len(line) {
			out += "\n"
		}
		return out, nil
	}
	return line, nil
}

// filterSlashStar strips /* */ comments, which may span lines. Comments
// do not nest. A line that ends inside a comment is dropped.
func (p *Preprocessor) filterSlashStar(line string) (string, error) {
	lex := NewLexer(line, false)
	tok := lex.Next()

	if p.openSlashStar {
		for !lex.Done() && !(tok.Text == "*" && lex.Peek().Text == "/") {
			tok = lex.Next()
		}
		if lex.Done() {
			return "", nil
		}
		p.openSlashStar = false
		lex.Next() // '/'
		tok = lex.Next()
	}

	var sb strings.Builder
	for tok.Kind != TokEOF {
		if tok.Text == "/" && lex.Peek().Text == "*" {
			lex.Next() // '*'
			closed := false
			for !lex.Done() {
				if lex.Next().Text == "*" && lex.Peek().Text == "/" {
					closed = true
					break
				}
			}
			if !closed {
				p.openSlashStar = true
				return "", nil
			}
			lex.Next() // '/'
			tok = lex.Next()
			continue
		}
		sb.WriteString(tok.Text)
		tok = lex.Next()
	}
	return sb.String(), nil
}

var spacesRE = regexp.MustCompile(` +`)

// filterSpaces collapses runs of spaces and trims spaces at both ends.
func (p *Preprocessor) filterSpaces(line string) (string, error) {
	return strings.Trim(spacesRE.ReplaceAllString(line, " "), " "), nil
}

var substRE = regexp.MustCompile(`@(\w+)(?:\((.+)\))?@`)

// filterSubstitution replaces @NAME@ and @NAME(args)@; undefined names
// and bad invocations are errors. It is meant to be used instead of the
// macros filter, not together with it.
func (p *Preprocessor) filterSubstitution(line string) (string, error) {
	return p.substitute(line, true)
}

// filterAttemptSubstitution is filterSubstitution that leaves anything
// it cannot substitute untouched.
func (p *Preprocessor) filterAttemptSubstitution(line string) (string, error) {
	return p.substitute(line, false)
}

func (p *Preprocessor) substitute(line string, strict bool) (string, error) {
	matches := substRE.FindAllStringSubmatchIndex(line, -1)
	if matches == nil {
		return line, nil
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(line[last:m[0]])
		whole, name := line[m[0]:m[1]], line[m[2]:m[3]]
		args, hasArgs := "", m[4] >= 0
		if hasArgs {
			args = line[m[4]:m[5]]
		}
		repl, err := p.substituteOne(whole, name, args, hasArgs, strict)
		if err != nil {
			return "", err
		}
		sb.WriteString(repl)
		last = m[1]
	}
	sb.WriteString(line[last:])
	return sb.String(), nil
}

func (p *Preprocessor) substituteOne(whole, name, args string, hasArgs, strict bool) (string, error) {
	v, ok := p.ctx.Get(name)
	if !ok {
		if strict {
			return "", p.newError(ErrUndefinedVar, name, nil)
		}
		return whole, nil
	}

	macro, isMacro := v.(*Macro)
	switch {
	case hasArgs && isMacro:
		// Unlike the macros filter, the result is not expanded again.
		out, err := macro.Expand(splitParams(args))
		if err != nil {
			if strict {
				return "", p.newError(ErrBadMacroInvoke, name, err)
			}
			return whole, nil
		}
		return out, nil
	case hasArgs || isMacro:
		if strict {
			return "", p.newError(ErrBadMacroInvoke, name, nil)
		}
		return whole, nil
	}
	return v.String(), nil
}

// filterMacros replaces every token naming a context entry. Function-like
// macros must be followed directly by a parenthesized argument list; meta
// macro expansions are handled again as input lines instead of being
// written in place.
func (p *Preprocessor) filterMacros(line string) (string, error) {
	lex := NewLexer(line, true)
	var sb strings.Builder
	for tok := lex.Next(); tok.Kind != TokEOF; tok = lex.Next() {
		v, ok := p.ctx.Get(tok.Text)
		if !ok {
			sb.WriteString(tok.Text)
			continue
		}
		macro, isMacro := v.(*Macro)
		if !isMacro {
			sb.WriteString(v.String())
			continue
		}
		args, err := p.macroArgs(lex, macro)
		if err != nil {
			return "", err
		}
		expanded, err := macro.Expand(args)
		if err != nil {
			return "", p.newError(ErrBadMacroInvoke, macro.Name, err)
		}
		if !macro.Meta {
			sb.WriteString(expanded)
			continue
		}
		if err := p.expandMeta(expanded); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// macroArgs reads "(a, b, ...)" following a macro name. Arguments cannot
// contain parentheses or commas.
func (p *Preprocessor) macroArgs(lex *Lexer, macro *Macro) ([]string, error) {
	if lex.Next().Text != "(" {
		return nil, p.newError(ErrBadMacroInvoke, macro.Name, nil)
	}
	var args []string
	var arg strings.Builder
	for {
		tok := lex.Next()
		switch {
		case tok.Kind == TokEOF:
			return nil, p.newError(ErrBadMacroInvoke, macro.Name, nil)
		case tok.Text == ")":
			return append(args, strings.TrimSpace(arg.String())), nil
		case tok.Text == ",":
			args = append(args, strings.TrimSpace(arg.String()))
			arg.Reset()
		default:
			arg.WriteString(tok.Text)
		}
	}
}

func (p *Preprocessor) expandMeta(text string) error {
	p.metaDepth++
	defer func() { p.metaDepth-- }()
	if p.metaDepth > p.maxMetaDepth {
		return p.newError(ErrMacroTooDeep, text, nil)
	}
	return p.handleLine(text)
}
