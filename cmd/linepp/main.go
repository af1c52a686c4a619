package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/raymyers/linepp/pkg/preproc"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetIn(os.Stdin)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// lineEndingsValue is a pflag.Value accepting lf, cr or crlf.
type lineEndingsValue string

func (v *lineEndingsValue) String() string { return string(*v) }

func (v *lineEndingsValue) Set(s string) error {
	switch s = strings.ToLower(s); s {
	case "lf", "cr", "crlf":
		*v = lineEndingsValue(s)
		return nil
	}
	return fmt.Errorf("must be one of lf, cr, crlf")
}

func (v *lineEndingsValue) Type() string { return "lineEndings" }

var _ pflag.Value = (*lineEndingsValue)(nil)

// configKeys binds config keys to the flags that override them.
var configKeys = map[string]string{
	"includes":         "include",
	"macro_includes":   "macros",
	"defines":          "define",
	"undefines":        "undefine",
	"filters":          "filter",
	"import_env":       "env",
	"unescape_defines": "unescape-defines",
	"output":           "output",
	"line_endings":     "line-endings",
	"marker":           "marker",
	"no_marker":        "no-marker",
	"resync":           "resync",
	"max_meta_depth":   "max-meta-depth",
	"verbose":          "verbose",
	"watch":            "watch",
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string
	lineEndings := lineEndingsValue("lf")

	rootCmd := &cobra.Command{
		Use:   "linepp [flags] [file...]",
		Short: "linepp is a line-oriented text preprocessor",
		Long: `linepp preprocesses text files line by line. Lines starting with the
directive marker (default "#") define variables and macros, select
regions with #if/#ifdef/#else/#endif and include other files; every
other line is passed through the enabled filters and written out.

With no files, standard input is read.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cfgFile); err != nil {
				fmt.Fprintf(errOut, "linepp: %v\n", err)
				return err
			}

			opts, err := buildOptions(v, args)
			if err != nil {
				fmt.Fprintf(errOut, "linepp: %v\n", err)
				return err
			}
			logger := newLogger(errOut, v.GetBool("verbose"))
			if v.ConfigFileUsed() != "" {
				logger.Debug("using config file", "path", v.ConfigFileUsed())
			}

			in := cmd.InOrStdin()
			if len(opts.Includes)+len(opts.Inputs) == 0 && isTerminal(in) {
				logger.Warn("reading from terminal; end input with Ctrl-D")
			}

			if v.GetBool("watch") {
				err = watch(cmd.Context(), opts, out, logger)
			} else {
				_, err = preproc.Run(opts, in, out, logger)
			}
			if err != nil {
				fmt.Fprintf(errOut, "linepp: %v\n", err)
			}
			return err
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.linepp.yaml)")
	flags.StringArrayP("include", "I", nil, "Process FILE before the positional inputs")
	flags.StringArrayP("macros", "M", nil, "Process FILE for its definitions only, writing nothing")
	flags.StringArrayP("define", "D", nil, "Define NAME or NAME=VALUE")
	flags.StringArrayP("undefine", "U", nil, "Undefine NAME")
	flags.StringArrayP("filter", "F", nil, "Enable FILTER (comma separated list allowed)")
	flags.BoolP("env", "E", false, "Import the environment as definitions")
	flags.StringP("output", "o", "", "Write output to FILE, creating parent directories")
	flags.Var(&lineEndings, "line-endings", "Output line endings: lf, cr or crlf")
	flags.String("marker", "#", "Directive marker")
	flags.Bool("no-marker", false, "Disable directive processing")
	flags.Bool("unescape-defines", false, "Strip double quotes around -D values")
	flags.StringArray("resync", nil, "File name glob selecting inputs that get //@line markers (replaces the defaults)")
	flags.Int("max-meta-depth", 0, "Limit on nested meta macro expansion (0 for the default)")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.Bool("watch", false, "Rerun whenever an input or included file changes")

	for key, name := range configKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return rootCmd
}

func loadConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".linepp")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LINEPP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// buildOptions creates preproc.Options from flags, environment and config
// file. Positional arguments replace configured inputs.
func buildOptions(v *viper.Viper, args []string) (*preproc.Options, error) {
	opts := &preproc.Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}
	if len(args) > 0 {
		opts.Inputs = args
	}
	return opts, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
