package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/raymyers/linepp/pkg/preproc"
)

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := []string{
		"include", "macros", "define", "undefine", "filter", "env", "output",
		"line-endings", "marker", "no-marker", "unescape-defines", "resync",
		"config", "verbose", "watch", "max-meta-depth",
	}
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
	for _, short := range []string{"I", "M", "D", "U", "F", "E", "o", "v"} {
		if cmd.Flags().ShorthandLookup(short) == nil {
			t.Errorf("expected flag -%s to exist", short)
		}
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestStdin(t *testing.T) {
	out, _, err := execute(t, "hello @WHO@\n", "-D", "WHO=world", "-F", "substitution")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello world\n" {
		t.Errorf("got %q", out)
	}
}

func TestDefineUndefineOrder(t *testing.T) {
	out, _, err := execute(t, "#ifdef GONE\ngone\n#endif\n#expand __KEEP__\n",
		"-D", "GONE", "-D", "KEEP=kept", "-U", "GONE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "kept\n" {
		t.Errorf("got %q", out)
	}
}

func TestUnescapeDefines(t *testing.T) {
	out, _, err := execute(t, "#expand __S__\n", "-D", `S="quoted"`, "--unescape-defines")
	if err != nil {
		t.Fatal(err)
	}
	if out != "quoted\n" {
		t.Errorf("got %q", out)
	}
}

func TestLineEndingsFlag(t *testing.T) {
	out, _, err := execute(t, "a\nb\n", "--line-endings", "CRLF")
	if err != nil {
		t.Fatal(err)
	}
	if out != "a\r\nb\r\n" {
		t.Errorf("got %q", out)
	}

	if _, _, err := execute(t, "", "--line-endings", "dos"); err == nil {
		t.Error("expected error for invalid line ending")
	}
}

func TestFilesAndOutput(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.txt")
	second := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(first, []byte("#define X 1\nfirst\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("#if X\nsecond\n#endif\n"), 0644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "build", "out.txt")

	out, _, err := execute(t, "", "-o", output, first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no stdout, got %q", out)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("got %q", data)
	}
}

func TestErrorReported(t *testing.T) {
	_, errOut, err := execute(t, "#error broken build\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(errOut, "linepp:") || !strings.Contains(errOut, "broken build") {
		t.Errorf("unexpected stderr %q", errOut)
	}
}

func TestNoMarker(t *testing.T) {
	out, _, err := execute(t, "#define X\n", "--no-marker")
	if err != nil {
		t.Fatal(err)
	}
	if out != "#define X\n" {
		t.Errorf("got %q", out)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "linepp.yaml")
	content := `defines:
  - NAME=config
filters:
  - substitution
marker: "%"
`
	if err := os.WriteFile(cfg, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "%define EXTRA 1\n@NAME@ @EXTRA@\n", "--config", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "config 1\n" {
		t.Errorf("got %q", out)
	}

	// Flags take precedence over the config file.
	out, _, err = execute(t, "@NAME@\n", "--config", cfg, "-D", "NAME=flag")
	if err != nil {
		t.Fatal(err)
	}
	if out != "flag\n" {
		t.Errorf("got %q", out)
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestWatchNeedsInputs(t *testing.T) {
	_, errOut, err := execute(t, "x\n", "--watch")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(errOut, "--watch") {
		t.Errorf("unexpected stderr %q", errOut)
	}
}

func TestWatcherRelevant(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	dep := filepath.Join(dir, "dep.txt")
	output := filepath.Join(dir, "out.txt")

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Close()

	w := &watcher{
		opts:   &preproc.Options{Inputs: []string{input}, Output: output},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		fs:     fs,
		dirs:   make(map[string]bool),
	}
	if err := w.track([]string{dep}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: input, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: dep, Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: dep, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: output, Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: filepath.Join(dir, "other.txt"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.event); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
	if len(w.dirs) != 1 {
		t.Errorf("expected one watched directory, got %v", w.dirs)
	}
}

func TestWatchReruns(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	output := filepath.Join(dir, "out", "result.txt")
	if err := os.WriteFile(input, []byte("one\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		opts := &preproc.Options{Inputs: []string{input}, Output: output}
		done <- watch(ctx, opts, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	waitForOutput(t, output, "one\n")
	if err := os.WriteFile(input, []byte("two\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForOutput(t, output, "two\n")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func waitForOutput(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		got, _ = os.ReadFile(path)
		if string(got) == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("output %s = %q, want %q", path, got, want)
}
