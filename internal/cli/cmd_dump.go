package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/calvinalkan/mmvec/pkg/mmvec"
	flag "github.com/spf13/pflag"
)

func (a *app) dumpCmd() *Command {
	flags := flag.NewFlagSet("dump", flag.ContinueOnError)
	out := flags.StringP("out", "o", "", "write values to `path` (atomically) instead of stdout")
	sorted := flags.Bool("sorted", false, "print values in ascending order")

	return &Command{
		Flags: flags,
		Usage: "dump [flags] <file>",
		Short: "Print the values of an array file, one per line",
		Long: `Print the values of an array file, one per line.

--sorted sorts a scratch copy next to the file; the array itself is not
modified.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			file, err := exactlyOneFile(args)
			if err != nil {
				return err
			}

			path := a.resolve(file)

			view, err := mmvec.OpenView[int64](path, a.viewOptions())
			if err != nil {
				return err
			}

			defer func() { _ = view.Close() }()

			values, err := view.Slice()
			if err != nil {
				return err
			}

			if *sorted {
				scratch, scratchErr := a.sortedCopy(path, values)
				if scratchErr != nil {
					return scratchErr
				}

				defer func() { _ = scratch.Close() }()

				values, err = scratch.Slice()
				if err != nil {
					return err
				}
			}

			buf := make([]byte, 0, len(values)*8)
			for _, v := range values {
				buf = strconv.AppendInt(buf, v, 10)
				buf = append(buf, '\n')
			}

			if *out == "" {
				o.Printf("%s", buf)

				return nil
			}

			outPath := *out
			if !filepath.IsAbs(outPath) {
				outPath = filepath.Join(a.workDir, outPath)
			}

			writeErr := a.fs.WriteFileAtomic(outPath, buf)
			if writeErr != nil {
				return fmt.Errorf("write %s: %w", outPath, writeErr)
			}

			o.Printf("wrote %d values to %s\n", len(values), outPath)

			return nil
		},
	}
}

// viewOptions reads the whole file front to back.
func (a *app) viewOptions() mmvec.Options {
	opts := a.arrayOptions()
	opts.AccessPattern = mmvec.AccessSequential

	return opts
}

// sortedCopy copies values into an ephemeral array next to path and sorts
// it there, so large files are not copied onto the heap.
func (a *app) sortedCopy(path string, values []int64) (*mmvec.Ephemeral[int64], error) {
	scratchPath := fmt.Sprintf("%s.sort-%d", path, os.Getpid())

	scratch, err := mmvec.NewEphemeral(scratchPath, mmvec.FromSlice(values), a.arrayOptions())
	if err != nil {
		return nil, fmt.Errorf("create scratch array: %w", err)
	}

	elems, err := scratch.Slice()
	if err != nil {
		_ = scratch.Close()

		return nil, err
	}

	slices.Sort(elems)

	a.logger.Debug("sorted scratch copy", "path", scratchPath, "len", len(elems))

	return scratch, nil
}
