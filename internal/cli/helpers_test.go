package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

// CLI runs mmvec commands in tests against a temp working directory with
// an isolated global config.
type CLI struct {
	t   *testing.T
	Dir string
	Env []string
}

// NewCLI creates a new test CLI with a temp directory.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{
		t:   t,
		Dir: t.TempDir(),
		Env: []string{"XDG_CONFIG_HOME=" + t.TempDir()},
	}
}

// Run executes the CLI and returns stdout, stderr and the exit code.
// Args should not include "mmvec" or "--cwd"; those are added.
func (r *CLI) Run(args ...string) (string, string, int) {
	return r.RunWithInput("", args...)
}

// RunWithInput is [CLI.Run] with stdin.
func (r *CLI) RunWithInput(stdin string, args ...string) (string, string, int) {
	var outBuf, errBuf bytes.Buffer

	var in io.Reader = strings.NewReader(stdin)

	fullArgs := append([]string{"mmvec", "--cwd", r.Dir}, args...)
	code := Run(context.Background(), in, &outBuf, &errBuf, fullArgs, r.Env)

	return outBuf.String(), errBuf.String(), code
}

// MustRun executes the CLI and fails the test on a non-zero exit code.
// Returns trimmed stdout.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 {
		r.t.Fatalf("command %v should have failed\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}
