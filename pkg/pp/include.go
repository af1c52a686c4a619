// include.go implements reading inputs and nested inclusion.
package pp

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Include preprocesses the file at path, writing its output.
func (p *Preprocessor) Include(path string) error {
	return p.includePath(path)
}

// IncludeMacros processes path for its definitions only; nothing is
// written, including from files it includes.
func (p *Preprocessor) IncludeMacros(path string) error {
	saved := p.silent
	p.silent = true
	defer func() { p.silent = saved }()
	return p.includePath(path)
}

func (p *Preprocessor) includePath(path string) error {
	path = strings.TrimSpace(path)
	if path != "-" && !filepath.IsAbs(path) {
		path = filepath.Join(p.cur.dir, path)
	}
	if path == "-" {
		return p.IncludeReader("-", os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return p.newError(ErrFileNotFound, path, err)
	}
	defer f.Close()
	return p.IncludeReader(path, f)
}

// IncludeReader preprocesses r as the input called name. The name "-"
// denotes standard input and leaves relative includes resolving against
// the current directory.
func (p *Preprocessor) IncludeReader(name string, r io.Reader) error {
	if p.includeDepth >= MaxIncludeDepth {
		return p.newError(ErrIncludeTooDeep, name, nil)
	}
	p.includeDepth++
	saved := p.saveFrame()
	defer func() {
		p.includeDepth--
		p.restoreFrame(saved)
	}()

	p.cur = frame{file: name, dir: saved.dir}
	if name != "-" {
		if abs, err := filepath.Abs(name); err == nil {
			p.cur.file = abs
		}
		p.cur.dir = filepath.Dir(p.cur.file)
		p.addDependency(p.cur.file)
	}
	p.cur.checkLines = p.wantsResync(p.cur.file)
	p.ctx.setFile(p.cur.file, p.cur.dir)
	p.ctx.setLine(0)
	p.logger.Debug("entering file", "file", p.cur.file, "depth", p.includeDepth)

	if p.cur.checkLines && !p.silent {
		if err := p.emitMarker(1); err != nil {
			return err
		}
	}

	if err := p.readLines(r); err != nil {
		return err
	}

	if p.includeDepth == 1 {
		if err := p.cond.CheckBalanced(); err != nil {
			p.logger.Warn(err.Error(), "file", p.cur.file)
		}
	}
	return nil
}

// readLines feeds r to handleLine one logical line at a time. Lines end
// in "\n", "\r\n" or a lone "\r", all passed on as "\n". A line
// ending in a backslash (trailing whitespace ignored) is joined with the
// next one; the line number counts logical lines.
func (p *Preprocessor) readLines(r io.Reader) error {
	br := bufio.NewReader(r)
	pending := ""
	for {
		l, err := nextLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return p.newError(ErrIO, p.cur.file, err)
		}
		eof := err != nil
		if eof && l == "" {
			break
		}

		if strings.HasSuffix(strings.TrimRight(l, " \t\r\n"), "\\") {
			pending += l[:strings.LastIndex(l, "\\")]
			if eof {
				break
			}
			continue
		}
		if herr := p.handleNext(pending + l); herr != nil {
			return herr
		}
		pending = ""
		if eof {
			return nil
		}
	}
	if pending != "" {
		return p.handleNext(pending)
	}
	return nil
}

// nextLine reads one physical line. The terminator, if any, is returned
// as "\n"; at end of input the error is io.EOF.
func nextLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		c, err := br.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		switch c {
		case '\n':
			sb.WriteByte('\n')
			return sb.String(), nil
		case '\r':
			if next, err := br.Peek(1); err == nil && next[0] == '\n' {
				_, _ = br.ReadByte()
			}
			sb.WriteByte('\n')
			return sb.String(), nil
		}
		sb.WriteByte(c)
	}
}

func (p *Preprocessor) handleNext(line string) error {
	p.cur.line++
	p.ctx.setLine(p.cur.line)
	return p.handleLine(line)
}

func (p *Preprocessor) saveFrame() frame {
	return p.cur
}

// restoreFrame returns to the caller's input and re-syncs its line
// markers, since included output has shifted the numbering.
func (p *Preprocessor) restoreFrame(f frame) {
	if p.includeDepth > 0 {
		f.written = -1
	}
	p.cur = f
	p.ctx.setFile(f.file, f.dir)
	p.ctx.setLine(f.line)
}

func (p *Preprocessor) wantsResync(file string) bool {
	base := filepath.Base(file)
	for _, g := range p.resync {
		if g.Match(base) {
			return true
		}
	}
	return false
}
