// Package main provides mmvec, a command line tool for persistent
// memory-mapped int64 arrays.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/calvinalkan/mmvec/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args, os.Environ())

	stop()
	os.Exit(exitCode)
}
