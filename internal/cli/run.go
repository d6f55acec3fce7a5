// Package cli implements the mmvec command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/mmvec/internal/config"
	"github.com/calvinalkan/mmvec/pkg/fs"
	"github.com/calvinalkan/mmvec/pkg/mmvec"
	flag "github.com/spf13/pflag"
)

// app carries what every command needs after global flags and config
// have been resolved.
type app struct {
	cfg     config.Config
	sources config.Sources
	workDir string
	env     []string
	fs      fs.FS
	logger  *slog.Logger
	in      io.Reader
}

// resolve makes path absolute against the configured data directory.
func (a *app) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(a.cfg.DataDir, path)
}

func (a *app) arrayOptions() mmvec.Options {
	return mmvec.Options{
		AccessPattern: a.cfg.Pattern(),
		FS:            a.fs,
		Logger:        a.logger,
	}
}

// Run is the main entry point. Returns exit code.
func Run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string, env []string) int {
	globals := flag.NewFlagSet("mmvec", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "use the specified config `file`")
	dataDir := globals.String("data-dir", "", "resolve relative array paths against `dir`")
	logLevel := globals.String("log-level", "", "debug, info, warn or error")
	help := globals.BoolP("help", "h", false, "show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, nil)

		return 1
	}

	if *help || globals.NArg() == 0 {
		printUsage(out, nil)

		return 0
	}

	if *workDir == "" {
		*workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return 1
		}
	}

	fsys := fs.NewReal()
	overrides := config.Config{DataDir: *dataDir, LogLevel: *logLevel}

	cfg, sources, err := config.Load(fsys, *workDir, *configPath, overrides, env)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a := &app{
		cfg:     cfg,
		sources: sources,
		workDir: *workDir,
		env:     env,
		fs:      fsys,
		logger:  newLogger(errOut, cfg.Level()),
		in:      in,
	}

	commands := a.commands()

	name := globals.Arg(0)

	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd.Run(ctx, NewIO(in, out, errOut), globals.Args()[1:])
		}
	}

	fprintln(errOut, "error: unknown command:", name)
	printUsage(errOut, commands)

	return 1
}

func (a *app) commands() []*Command {
	return []*Command{
		a.createCmd(),
		a.infoCmd(),
		a.dumpCmd(),
		a.shellCmd(),
		a.configCmd(),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, `mmvec - persistent memory-mapped int64 arrays

Usage: mmvec [options] <command> [args]

Options:
  -C, --cwd <dir>        Run as if started in <dir>
  -c, --config <file>    Use specified config file
      --data-dir <dir>   Resolve relative array paths against <dir>
      --log-level <lvl>  debug, info, warn or error

Commands:`)

	if commands == nil {
		commands = (&app{}).commands()
	}

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}

// errUsage reports wrong positional arguments.
var errUsage = errors.New("wrong number of arguments")

func exactlyOneFile(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: expected exactly one file, got %d", errUsage, len(args))
	}

	return args[0], nil
}
