package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/calvinalkan/mmvec/pkg/mmvec"
	flag "github.com/spf13/pflag"
)

func (a *app) createCmd() *Command {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	count := flags.IntP("count", "n", 0, "number of elements")
	fill := flags.Int64("fill", 0, "value of every element")
	pattern := flags.String("pattern", "", "access pattern hint (none, random, sequential)")
	force := flags.BoolP("force", "f", false, "overwrite an existing file")

	return &Command{
		Flags: flags,
		Usage: "create [flags] <file>",
		Short: "Create an array file",
		Long: `Create an array file holding --count copies of --fill.

Without --count the array starts empty. Existing files are only replaced
with --force.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			file, err := exactlyOneFile(args)
			if err != nil {
				return err
			}

			path := a.resolve(file)

			exists, err := a.fs.Exists(path)
			if err != nil {
				return err
			}

			if exists && !*force {
				return fmt.Errorf("%s already exists (use --force to replace it): %w", path, os.ErrExist)
			}

			opts := a.arrayOptions()

			if *pattern != "" {
				opts.AccessPattern, err = mmvec.ParseAccessPattern(*pattern)
				if err != nil {
					return err
				}
			}

			src := mmvec.Empty[int64]()
			if *count > 0 {
				src = mmvec.Fill(*count, *fill)
			}

			arr, err := mmvec.Open(path, src, opts)
			if err != nil {
				return err
			}

			a.logger.Debug("array created", "path", path, "len", arr.Len(), "cap", arr.Cap(), "pattern", opts.AccessPattern)

			o.Printf("created %s (len=%d cap=%d bytes=%d)\n", path, arr.Len(), arr.Cap(), arr.ByteSize())

			return arr.Close()
		},
	}
}
