package cli

import (
	"context"
	"errors"

	"github.com/calvinalkan/mmvec/pkg/mmvec"
)

func (a *app) infoCmd() *Command {
	return &Command{
		Usage: "info <file>",
		Short: "Show the trailer of an array file",
		Exec: func(_ context.Context, o *IO, args []string) error {
			file, err := exactlyOneFile(args)
			if err != nil {
				return err
			}

			path := a.resolve(file)

			view, err := mmvec.OpenView[int64](path, a.arrayOptions())
			if err != nil {
				if errors.Is(err, mmvec.ErrFormatInvalid) {
					o.Warn("file was not closed cleanly or is not an mmvec file", "delete it and recreate it with 'mmvec create'")
				}

				return err
			}

			o.Printf("path:     %s\n", view.Path())
			o.Printf("len:      %d\n", view.Len())
			o.Printf("cap:      %d\n", view.Cap())
			o.Printf("bytesize: %d\n", view.ByteSize())

			if view.Len() > 0 {
				first, _ := view.At(0)
				last, _ := view.At(view.Len() - 1)
				o.Printf("first:    %d\n", first)
				o.Printf("last:     %d\n", last)
			}

			return view.Close()
		},
	}
}
