// preprocess.go implements the main preprocessor driver.
package pp

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/raymyers/linepp/pkg/expr"
)

const (
	// DefaultMaxMetaDepth bounds how many times meta macro output may be
	// fed back into the dispatcher from a single line.
	DefaultMaxMetaDepth = 64

	// MaxIncludeDepth is the maximum allowed include nesting.
	MaxIncludeDepth = 200
)

// DefaultResyncPatterns selects the inputs that get //@line markers.
var DefaultResyncPatterns = []string{"*.js", "*.jsm", "*.java", "*.js.in", "*.jsm.in", "*.java.in"}

// lineEndings maps the names accepted by SetLineEndings to their text.
var lineEndings = map[string]string{
	"cr":   "\r",
	"lf":   "\n",
	"crlf": "\r\n",
}

// Diagnostic levels for WarnUnused.
const (
	actionNone   = iota // no marker line seen
	actionMarker        // marker lines seen, nothing useful done
	actionUseful        // a directive ran or a filter changed output
)

// Options configures a Preprocessor.
type Options struct {
	Output       io.Writer      // defaults to os.Stdout
	Logger       *slog.Logger   // defaults to slog.Default()
	Evaluator    expr.Evaluator // defaults to expr.Default
	MaxMetaDepth int            // defaults to DefaultMaxMetaDepth
}

// frame describes the input currently being read. Included inputs save
// the caller's frame and restore it when they finish.
type frame struct {
	file       string
	dir        string
	line       int
	checkLines bool
	written    int
}

// Preprocessor processes marker-directed text. An instance is not safe
// for concurrent use; independent instances share nothing.
type Preprocessor struct {
	ctx        *Context
	cond       *Conditional
	directives map[string]directive
	filters    []activeFilter

	out         io.Writer
	le          string
	marker      string
	instruction *regexp.Regexp

	eval           expr.Evaluator
	logger         *slog.Logger
	resync         []glob.Glob
	resyncPatterns []string

	cur           frame
	silent        bool
	openSlashStar bool
	actionLevel   int
	includeDepth  int
	metaDepth     int
	maxMetaDepth  int

	deps     []string
	seenDeps map[string]bool
}

// NewPreprocessor creates a preprocessor using '#' as the directive
// marker, "\n" line endings and the default resync patterns.
func NewPreprocessor(opts Options) *Preprocessor {
	p := &Preprocessor{
		ctx:          NewContext(),
		out:          opts.Output,
		le:           "\n",
		eval:         opts.Evaluator,
		logger:       opts.Logger,
		maxMetaDepth: opts.MaxMetaDepth,
		seenDeps:     make(map[string]bool),
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.eval == nil {
		p.eval = expr.Default
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.maxMetaDepth <= 0 {
		p.maxMetaDepth = DefaultMaxMetaDepth
	}
	p.cur.dir = p.ctx.Dir()
	p.cond = NewConditional(func(msg string) {
		p.logger.Warn(msg, "file", p.cur.file, "line", p.cur.line)
	})
	p.directives = p.buildDirectives()
	p.SetMarker("#")
	// The default patterns are known to compile.
	_ = p.SetResyncPatterns(DefaultResyncPatterns)
	return p
}

// Context returns the variable environment.
func (p *Preprocessor) Context() *Context {
	return p.ctx
}

// SetOutput redirects emitted lines to w.
func (p *Preprocessor) SetOutput(w io.Writer) {
	p.out = w
}

// SetLineEndings selects the output line ending: "lf", "cr" or "crlf".
func (p *Preprocessor) SetLineEndings(name string) error {
	le, ok := lineEndings[name]
	if !ok {
		return fmt.Errorf("unknown line ending %q (want cr, lf or crlf)", name)
	}
	p.le = le
	return nil
}

// SetMarker sets the text introducing directive lines. An empty marker
// disables directive processing entirely.
func (p *Preprocessor) SetMarker(marker string) {
	p.marker = marker
	p.instruction = nil
	if marker != "" {
		p.instruction = regexp.MustCompile(`^` + regexp.QuoteMeta(marker) + `\s*([a-z]+)(?:\s(.*))?$`)
	}
}

// SetResyncPatterns replaces the file name globs selecting inputs that
// get //@line markers. Patterns match the base name of the input.
func (p *Preprocessor) SetResyncPatterns(patterns []string) error {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pat := range patterns {
		g, err := glob.Compile(pat)
		if err != nil {
			return fmt.Errorf("resync pattern %q: %w", pat, err)
		}
		globs = append(globs, g)
	}
	p.resync = globs
	p.resyncPatterns = append([]string(nil), patterns...)
	return nil
}

// Clone returns a new preprocessor sharing this one's variable
// definitions (copied), marker, line endings, output and resync patterns.
// Filters and conditional state are not copied.
func (p *Preprocessor) Clone() *Preprocessor {
	rv := NewPreprocessor(Options{
		Output:       p.out,
		Logger:       p.logger,
		Evaluator:    p.eval,
		MaxMetaDepth: p.maxMetaDepth,
	})
	rv.ctx.Update(p.ctx)
	rv.SetMarker(p.marker)
	rv.le = p.le
	rv.resync = p.resync
	rv.resyncPatterns = p.resyncPatterns
	return rv
}

// Dependencies returns every file opened so far, in first-open order.
func (p *Preprocessor) Dependencies() []string {
	return append([]string(nil), p.deps...)
}

func (p *Preprocessor) addDependency(path string) {
	if p.seenDeps[path] {
		return
	}
	p.seenDeps[path] = true
	p.deps = append(p.deps, path)
}

// ProcessString preprocesses source as if it were a file called name and
// returns the output.
func (p *Preprocessor) ProcessString(source, name string) (string, error) {
	var sb strings.Builder
	saved := p.out
	p.out = &sb
	defer func() { p.out = saved }()

	err := p.IncludeReader(name, strings.NewReader(source))
	return sb.String(), err
}

// WarnUnused logs a warning when the processed input did not need
// preprocessing.
func (p *Preprocessor) WarnUnused(file string) {
	switch p.actionLevel {
	case actionNone:
		p.logger.Warn("no preprocessor directives found", "file", file)
	case actionMarker:
		p.logger.Warn("no useful preprocessor directives found", "file", file)
	}
}

func (p *Preprocessor) newError(kind ErrorKind, context string, err error) *Error {
	return &Error{File: p.cur.file, Line: p.cur.line, Kind: kind, Context: context, Err: err}
}

func (p *Preprocessor) isMarkerLine(line string) bool {
	return p.marker != "" && strings.HasPrefix(line, p.marker)
}

// handleLine dispatches one logical line: directives run their handler,
// other lines are filtered and written when the region is active.
func (p *Preprocessor) handleLine(line string) error {
	marked := p.isMarkerLine(line)
	if marked && p.actionLevel == actionNone {
		p.actionLevel = actionMarker
	}

	if p.instruction != nil {
		if m := p.instruction.FindStringSubmatch(strings.TrimSuffix(line, "\n")); m != nil {
			return p.dispatch(m[1], m[2], line)
		}
	}

	if marked || !p.cond.Active() {
		return nil
	}
	return p.write(line)
}

// write filters line and emits it.
func (p *Preprocessor) write(line string) error {
	if p.silent {
		return nil
	}
	if err := p.syncLine(); err != nil {
		return err
	}
	filtered, err := p.applyFilters(line)
	if err != nil {
		return err
	}
	if filtered != line {
		p.actionLevel = actionUseful
	}
	return p.emit(filtered)
}

// writeLiteral emits text and a newline without filtering.
func (p *Preprocessor) writeLiteral(text string) error {
	if p.silent {
		return nil
	}
	if err := p.syncLine(); err != nil {
		return err
	}
	return p.emit(text + "\n")
}

// syncLine emits a //@line marker when the output has drifted from the
// source line numbering.
func (p *Preprocessor) syncLine() error {
	if !p.cur.checkLines {
		return nil
	}
	p.cur.written++
	if p.cur.written == p.cur.line {
		return nil
	}
	p.cur.written = p.cur.line
	return p.emitMarker(p.cur.line)
}

func (p *Preprocessor) emitMarker(line int) error {
	return p.emit(fmt.Sprintf("//@line %d \"%s\"\n", line, p.cur.file))
}

func (p *Preprocessor) emit(s string) error {
	if p.le != "\n" {
		s = strings.ReplaceAll(s, "\n", p.le)
	}
	if _, err := io.WriteString(p.out, s); err != nil {
		return p.newError(ErrIO, "writing output", err)
	}
	return nil
}
