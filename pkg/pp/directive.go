// directive.go implements directive dispatch and the directive handlers.
package pp

import (
	"regexp"
	"strings"
)

// directiveLevel decides whether a directive runs inside inactive
// regions.
type directiveLevel int

const (
	levelDefinition directiveLevel = iota // only in active regions
	levelBranch                           // at the innermost inactive level too
	levelStructural                       // always, to keep nesting balanced
)

func (l directiveLevel) allows(disabled int) bool {
	switch l {
	case levelDefinition:
		return disabled == 0
	case levelBranch:
		return disabled <= 1
	default:
		return true
	}
}

type directive struct {
	level directiveLevel
	run   func(args string) error
}

var (
	defineRE  = regexp.MustCompile(`^(\w+)(?:\(([^)]+)\))?(?:\s+(.*))?$`)
	defmetaRE = regexp.MustCompile(`^(\w+)\(([^)]+)\)\s+(.*)$`)
	nameRE    = regexp.MustCompile(`^\w+$`)
	expandRE  = regexp.MustCompile(`__(\w+)__`)
)

func (p *Preprocessor) buildDirectives() map[string]directive {
	return map[string]directive{
		"define":       {levelDefinition, p.doDefine},
		"undef":        {levelDefinition, p.doUndef},
		"defmeta":      {levelDefinition, p.doDefmeta},
		"if":           {levelStructural, p.doIf},
		"ifdef":        {levelStructural, p.doIfdef},
		"ifndef":       {levelStructural, p.doIfndef},
		"else":         {levelBranch, p.doElse},
		"elif":         {levelBranch, p.doElif},
		"elifdef":      {levelBranch, p.doElifdef},
		"elifndef":     {levelBranch, p.doElifndef},
		"endif":        {levelStructural, p.doEndif},
		"expand":       {levelDefinition, p.doExpand},
		"literal":      {levelDefinition, p.doLiteral},
		"filter":       {levelDefinition, p.doFilter},
		"unfilter":     {levelDefinition, p.doUnfilter},
		"include":      {levelDefinition, p.doInclude},
		"includesubst": {levelDefinition, p.doIncludeSubst},
		"error":        {levelDefinition, p.doError},
	}
}

// dispatch runs the handler for a recognized directive line. Directives
// are ignored while a /* comment opened by the slashstar filter is open.
func (p *Preprocessor) dispatch(name, args, line string) error {
	d, ok := p.directives[name]
	if !ok {
		return p.newError(ErrInvalidCmd, strings.TrimSuffix(line, "\n"), nil)
	}
	if name != "literal" {
		p.actionLevel = actionUseful
	}
	if !d.level.allows(p.cond.Disabled()) || p.openSlashStar {
		return nil
	}
	return d.run(args)
}

func (p *Preprocessor) doDefine(args string) error {
	m := defineRE.FindStringSubmatch(args)
	if m == nil {
		return p.newError(ErrSyntaxDef, args, nil)
	}
	name, params, raw := m[1], m[2], m[3]

	var val Value = Int(1)
	if raw != "" {
		filtered, err := p.applyFilters(raw)
		if err != nil {
			return err
		}
		val = ParseValue(filtered)
	}
	if params != "" {
		macro, err := NewMacro(name, splitParams(params), val.String(), false)
		if err != nil {
			return p.newError(ErrSyntaxDef, args, err)
		}
		val = macro
	}
	p.ctx.Set(name, val)
	return nil
}

func (p *Preprocessor) doUndef(args string) error {
	if !nameRE.MatchString(args) {
		return p.newError(ErrSyntaxDef, args, nil)
	}
	if isReserved(args) {
		p.logger.Debug("ignoring #undef of reserved name", "name", args, "file", p.cur.file, "line", p.cur.line)
		return nil
	}
	p.ctx.Delete(args)
	return nil
}

// doDefmeta defines a macro whose expansion is handled again as an
// input line by the macros filter. Meta macros are always function-like
// and their body is not filtered.
func (p *Preprocessor) doDefmeta(args string) error {
	m := defmetaRE.FindStringSubmatch(args)
	if m == nil {
		return p.newError(ErrSyntaxDefmeta, args, nil)
	}
	macro, err := NewMacro(m[1], splitParams(m[2]), m[3], true)
	if err != nil {
		return p.newError(ErrSyntaxDefmeta, args, err)
	}
	p.ctx.Set(m[1], macro)
	return nil
}

func (p *Preprocessor) evalIf(args string) func() (bool, error) {
	return func() (bool, error) {
		v, err := p.eval.Evaluate(args, p.ctx)
		if err != nil {
			return false, p.newError(ErrSyntax, args, err)
		}
		return v.IsTrue(), nil
	}
}

func (p *Preprocessor) evalDefined(args string, want bool) func() (bool, error) {
	return func() (bool, error) {
		name := strings.TrimSpace(args)
		if !nameRE.MatchString(name) {
			return false, p.newError(ErrInvalidVar, args, nil)
		}
		return p.ctx.Has(name) == want, nil
	}
}

func (p *Preprocessor) doIf(args string) error     { return p.cond.Open(p.evalIf(args)) }
func (p *Preprocessor) doIfdef(args string) error  { return p.cond.Open(p.evalDefined(args, true)) }
func (p *Preprocessor) doIfndef(args string) error { return p.cond.Open(p.evalDefined(args, false)) }

func (p *Preprocessor) doElif(args string) error     { return p.cond.Elif(p.evalIf(args)) }
func (p *Preprocessor) doElifdef(args string) error  { return p.cond.Elif(p.evalDefined(args, true)) }
func (p *Preprocessor) doElifndef(args string) error { return p.cond.Elif(p.evalDefined(args, false)) }

func (p *Preprocessor) doElse(string) error {
	p.cond.Else()
	return nil
}

func (p *Preprocessor) doEndif(string) error {
	p.cond.Endif()
	return nil
}

// doExpand replaces __NAME__ with the value of NAME, or nothing when
// NAME is undefined, and writes the result.
func (p *Preprocessor) doExpand(args string) error {
	out := expandRE.ReplaceAllStringFunc(args, func(m string) string {
		if v, ok := p.ctx.Get(m[2 : len(m)-2]); ok {
			return v.String()
		}
		return ""
	})
	return p.write(out + "\n")
}

func (p *Preprocessor) doLiteral(args string) error {
	return p.writeLiteral(args)
}

func (p *Preprocessor) doFilter(args string) error {
	p.EnableFilters(strings.Fields(args)...)
	return nil
}

func (p *Preprocessor) doUnfilter(args string) error {
	p.DisableFilters(strings.Fields(args)...)
	return nil
}

func (p *Preprocessor) doInclude(args string) error {
	path, err := p.applyFilters(args)
	if err != nil {
		return err
	}
	return p.includePath(path)
}

func (p *Preprocessor) doIncludeSubst(args string) error {
	path, err := p.substitute(args, true)
	if err != nil {
		return err
	}
	return p.doInclude(path)
}

func (p *Preprocessor) doError(args string) error {
	return p.newError(ErrUser, args, nil)
}
