// Package preproc turns command-line and config-file settings into a
// configured preprocessing run.
package preproc

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/raymyers/linepp/pkg/pp"
)

// Options configures a preprocessing run. Field tags name the keys used
// in the config file.
type Options struct {
	Inputs          []string `mapstructure:"inputs"`         // files processed in order after Includes
	Includes        []string `mapstructure:"includes"`       // -I files, processed before Inputs
	MacroIncludes   []string `mapstructure:"macro_includes"` // -M files, definitions only
	Defines         []string `mapstructure:"defines"`        // -D NAME or NAME=VALUE
	Undefines       []string `mapstructure:"undefines"`      // -U NAME
	Filters         []string `mapstructure:"filters"`        // -F FILTER
	ImportEnv       bool     `mapstructure:"import_env"`     // -E
	UnescapeDefines bool     `mapstructure:"unescape_defines"`
	Output          string   `mapstructure:"output"`       // empty for the given writer
	LineEndings     string   `mapstructure:"line_endings"` // lf, cr or crlf
	Marker          string   `mapstructure:"marker"`
	NoMarker        bool     `mapstructure:"no_marker"`
	Resync          []string `mapstructure:"resync"` // replaces the default resync globs
	MaxMetaDepth    int      `mapstructure:"max_meta_depth"`

	// Environ is imported by ImportEnv; nil means os.Environ().
	Environ []string `mapstructure:"-"`
}

var escapedValue = regexp.MustCompile(`^".*"$`)

// ParseDefine splits a -D argument into a name and value. A bare name is
// defined as 1, an integer value becomes an Int, and with unescape set a
// value wrapped in double quotes loses them.
func ParseDefine(s string, unescape bool) (string, pp.Value) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return name, pp.Int(1)
	}
	if unescape && escapedValue.MatchString(value) {
		return name, pp.Text(value[1 : len(value)-1])
	}
	return name, pp.ParseValue(value)
}

// New creates a preprocessor writing to out and applies opts in the
// order -E, -D, -U, -F, then processes the -M files.
func New(opts *Options, out io.Writer, logger *slog.Logger) (*pp.Preprocessor, error) {
	if opts == nil {
		opts = &Options{}
	}
	p := pp.NewPreprocessor(pp.Options{
		Output:       out,
		Logger:       logger,
		MaxMetaDepth: opts.MaxMetaDepth,
	})

	if opts.LineEndings != "" {
		if err := p.SetLineEndings(opts.LineEndings); err != nil {
			return nil, err
		}
	}
	switch {
	case opts.NoMarker:
		p.SetMarker("")
	case opts.Marker != "":
		p.SetMarker(opts.Marker)
	}
	if len(opts.Resync) > 0 {
		if err := p.SetResyncPatterns(opts.Resync); err != nil {
			return nil, err
		}
	}

	ctx := p.Context()
	if opts.ImportEnv {
		environ := opts.Environ
		if environ == nil {
			environ = os.Environ()
		}
		for _, kv := range environ {
			if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
				ctx.Set(name, pp.Text(value))
			}
		}
	}
	for _, d := range opts.Defines {
		name, value := ParseDefine(d, opts.UnescapeDefines)
		if !pp.IsIdent(name) {
			return nil, fmt.Errorf("invalid define %q", d)
		}
		ctx.Set(name, value)
	}
	for _, name := range opts.Undefines {
		ctx.Delete(name)
	}
	for _, f := range opts.Filters {
		p.EnableFilters(strings.FieldsFunc(f, isFilterSep)...)
	}

	for _, path := range opts.MacroIncludes {
		if err := p.IncludeMacros(path); err != nil {
			return p, fmt.Errorf("macro include %s: %w", path, err)
		}
	}
	return p, nil
}

func isFilterSep(r rune) bool {
	return r == ',' || r == ' ' || r == '\t'
}

// Run performs a full preprocessing pass: Includes, then Inputs, or in
// when both are empty. Output goes to opts.Output, creating parent
// directories, or to out. The returned preprocessor is non-nil whenever
// processing started, so callers can inspect its dependencies after an
// error.
func Run(opts *Options, in io.Reader, out io.Writer, logger *slog.Logger) (*pp.Preprocessor, error) {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := out
	if opts.Output != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
		f, err := os.Create(opts.Output)
		if err != nil {
			return nil, fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}

	p, err := New(opts, w, logger)
	if err != nil {
		return p, err
	}

	files := append(append([]string(nil), opts.Includes...), opts.Inputs...)
	if len(files) == 0 {
		if err := p.IncludeReader("-", in); err != nil {
			return p, err
		}
		p.WarnUnused("-")
		return p, nil
	}
	for _, path := range files {
		if err := p.Include(path); err != nil {
			return p, err
		}
	}
	p.WarnUnused(files[len(files)-1])
	return p, nil
}

// PreprocessString runs source through a preprocessor configured by opts
// as if it were the file called name, and returns the output. Includes
// and Inputs are ignored.
func PreprocessString(source, name string, opts *Options) (string, error) {
	p, err := New(opts, io.Discard, nil)
	if err != nil {
		return "", err
	}
	return p.ProcessString(source, name)
}
