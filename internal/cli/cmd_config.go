package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/calvinalkan/mmvec/internal/config"
	flag "github.com/spf13/pflag"
)

var errNoGlobalConfig = errors.New("cannot determine global config path (set XDG_CONFIG_HOME or HOME)")

func (a *app) configCmd() *Command {
	flags := flag.NewFlagSet("config", flag.ContinueOnError)
	global := flags.Bool("global", false, "init: write the global config instead of the project one")
	force := flags.BoolP("force", "f", false, "init: overwrite an existing file")

	return &Command{
		Flags: flags,
		Usage: "config <init|show> [flags]",
		Short: "Write a default config file or show the resolved config",
		Long: `config init writes a commented default config file to ./` + config.FileName + `
(or the global config with --global).

config show prints the resolved configuration and where it came from.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: expected init or show", errUsage)
			}

			switch args[0] {
			case "init":
				path := filepath.Join(a.workDir, config.FileName)

				if *global {
					path = config.GlobalPath(a.env)
					if path == "" {
						return errNoGlobalConfig
					}
				}

				err := config.WriteTemplate(a.fs, path, *force)
				if err != nil {
					return err
				}

				o.Println("wrote", path)

				return nil
			case "show":
				return a.printConfig(o)
			default:
				return fmt.Errorf("%w: unknown config subcommand %q", errUsage, args[0])
			}
		},
	}
}

func (a *app) printConfig(o *IO) error {
	formatted, err := config.Format(a.cfg)
	if err != nil {
		return err
	}

	o.Println(formatted)
	o.Println("")
	o.Println("# Sources:")

	if a.sources.Global != "" {
		o.Println("#   global:", a.sources.Global)
	}

	if a.sources.Project != "" {
		o.Println("#   project:", a.sources.Project)
	}

	if a.sources.Global == "" && a.sources.Project == "" {
		o.Println("#   (using defaults only)")
	}

	return nil
}
