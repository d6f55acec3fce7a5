package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calvinalkan/mmvec/pkg/flightcache"
	"github.com/calvinalkan/mmvec/pkg/mmvec"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

const shellHelp = `Commands:
  len                 Number of elements
  cap                 Capacity before the next remap
  get <i>             Element i (i < cap, not checked against len)
  at <i>              Element i (i < len)
  set <i> <v>         Store v at i (i < len)
  push <v>...         Append values
  reserve <n>         Grow capacity to at least n
  resize <n>          Set the length to n
  sum <a> <b>         Sum of elements [a, b), memoised until the next write
  flush               Sync to disk and rewrite the trailer
  info                Show path, length, capacity and cache stats
  help                Show this help
  exit / quit / q     Exit`

var errArgs = errors.New("bad arguments")

func (a *app) shellCmd() *Command {
	flags := flag.NewFlagSet("shell", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "shell <file>",
		Short: "Interactive shell on an array file (created if missing)",
		Long: `Interactive shell on an array file. The file is created empty if it
does not exist. When stdin is not a terminal, commands are read one per
line.

` + shellHelp,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			file, err := exactlyOneFile(args)
			if err != nil {
				return err
			}

			sh, err := a.openShell(o, a.resolve(file))
			if err != nil {
				return err
			}

			runErr := sh.run(ctx)

			return errors.Join(runErr, sh.close())
		},
	}
}

// shell is one open array plus the memo cache for range sums. gen is
// part of every memo key and changes on every write, so stale sums are
// never returned; they age out of the cache instead.
type shell struct {
	app   *app
	o     *IO
	arr   *mmvec.Array[int64]
	cache *flightcache.Ristretto[string, int64]
	sums  *flightcache.Adapter[string, int64]
	gen   uint64
}

func (a *app) openShell(o *IO, path string) (*shell, error) {
	exists, err := a.fs.Exists(path)
	if err != nil {
		return nil, err
	}

	src := mmvec.Reuse[int64]()
	if !exists {
		src = mmvec.Empty[int64]()
	}

	arr, err := mmvec.Open(path, src, a.arrayOptions())
	if err != nil {
		return nil, err
	}

	cache, err := flightcache.NewRistretto[string, int64](flightcache.RistrettoConfig[int64]{
		MaxCost:     a.cfg.CacheMaxCost,
		NumCounters: a.cfg.CacheCounters,
	})
	if err != nil {
		return nil, errors.Join(err, arr.Close())
	}

	a.logger.Debug("shell opened", "path", path, "created", !exists, "len", arr.Len(), "cap", arr.Cap())

	return &shell{
		app:   a,
		o:     o,
		arr:   arr,
		cache: cache,
		sums:  flightcache.New[string, int64](cache, flightcache.Options[int64]{Logger: a.logger}),
	}, nil
}

func (s *shell) close() error {
	s.cache.Close()

	return s.arr.Close()
}

func (s *shell) run(ctx context.Context) error {
	if f, ok := s.app.in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return s.interactive(ctx)
	}

	scanner := bufio.NewScanner(s.app.in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.exec(ctx, scanner.Text()) {
			return nil
		}
	}

	return scanner.Err()
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".mmvec_history")
}

func (s *shell) interactive(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	defer saveHistory(line)

	s.o.Printf("mmvec shell - %s (len=%d cap=%d)\n", s.arr.Path(), s.arr.Len(), s.arr.Cap())
	s.o.Println("Type 'help' for available commands.")

	for ctx.Err() == nil {
		input, err := line.Prompt("mmvec> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				s.o.Println()

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		if s.exec(ctx, input) {
			return nil
		}
	}

	return ctx.Err()
}

func saveHistory(line *liner.State) {
	path := historyFile()
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}

	_, _ = line.WriteHistory(f)
	_ = f.Close()
}

var shellCommands = []string{"len", "cap", "get", "at", "set", "push", "reserve", "resize", "sum", "flush", "info", "help", "quit"}

func completer(line string) []string {
	var out []string

	for _, c := range shellCommands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}

	return out
}

// exec runs one command line and reports whether the shell should exit.
// Command errors are printed, not returned.
func (s *shell) exec(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error

	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		s.o.Println(shellHelp)
	case "len":
		s.o.Println(s.arr.Len())
	case "cap":
		s.o.Println(s.arr.Cap())
	case "get":
		err = s.cmdGet(args)
	case "at":
		err = s.cmdAt(args)
	case "set":
		err = s.cmdSet(args)
	case "push":
		err = s.cmdPush(args)
	case "reserve":
		err = s.cmdReserve(args)
	case "resize":
		err = s.cmdResize(args)
	case "sum":
		err = s.cmdSum(ctx, args)
	case "flush":
		err = s.arr.Flush()
		if err == nil {
			s.o.Println("ok")
		}
	case "info":
		s.cmdInfo()
	default:
		s.o.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		s.o.Println("error:", err)
	}

	return false
}

func parseInts(args []string, want int) ([]int64, error) {
	if len(args) != want {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", errArgs, want, len(args))
	}

	out := make([]int64, len(args))

	for i, arg := range args {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", errArgs, arg)
		}

		out[i] = v
	}

	return out, nil
}

// index converts a parsed argument to an int index, rejecting values the
// platform int cannot hold.
func index(v int64) (int, error) {
	if v < 0 || int64(int(v)) != v {
		return 0, fmt.Errorf("%w: index %d", errArgs, v)
	}

	return int(v), nil
}

func (s *shell) cmdGet(args []string) error {
	n, err := parseInts(args, 1)
	if err != nil {
		return err
	}

	i, err := index(n[0])
	if err != nil {
		return err
	}

	// Get is unchecked against len but must stay inside the mapping.
	if i >= s.arr.Cap() {
		return fmt.Errorf("index %d not in [0, cap=%d): %w", i, s.arr.Cap(), mmvec.ErrOutOfRange)
	}

	v, err := s.arr.Get(i)
	if err != nil {
		return err
	}

	s.o.Println(v)

	return nil
}

func (s *shell) cmdAt(args []string) error {
	n, err := parseInts(args, 1)
	if err != nil {
		return err
	}

	i, err := index(n[0])
	if err != nil {
		return err
	}

	v, err := s.arr.At(i)
	if err != nil {
		return err
	}

	s.o.Println(v)

	return nil
}

func (s *shell) cmdSet(args []string) error {
	n, err := parseInts(args, 2)
	if err != nil {
		return err
	}

	i, err := index(n[0])
	if err != nil {
		return err
	}

	err = s.arr.SetAt(i, n[1])
	if err != nil {
		return err
	}

	s.gen++
	s.o.Println("ok")

	return nil
}

func (s *shell) cmdPush(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: push needs at least one value", errArgs)
	}

	values, err := parseInts(args, len(args))
	if err != nil {
		return err
	}

	s.gen++

	for _, v := range values {
		err = s.arr.PushBack(v)
		if err != nil {
			return err
		}
	}

	s.o.Printf("len=%d cap=%d\n", s.arr.Len(), s.arr.Cap())

	return nil
}

func (s *shell) cmdReserve(args []string) error {
	n, err := parseInts(args, 1)
	if err != nil {
		return err
	}

	c, err := index(n[0])
	if err != nil {
		return err
	}

	err = s.arr.Reserve(c)
	if err != nil {
		return err
	}

	s.o.Printf("cap=%d\n", s.arr.Cap())

	return nil
}

func (s *shell) cmdResize(args []string) error {
	n, err := parseInts(args, 1)
	if err != nil {
		return err
	}

	size, err := index(n[0])
	if err != nil {
		return err
	}

	s.gen++

	err = s.arr.Resize(size)
	if err != nil {
		return err
	}

	s.o.Printf("len=%d cap=%d\n", s.arr.Len(), s.arr.Cap())

	return nil
}

func (s *shell) cmdSum(ctx context.Context, args []string) error {
	n, err := parseInts(args, 2)
	if err != nil {
		return err
	}

	lo, err := index(n[0])
	if err != nil {
		return err
	}

	hi, err := index(n[1])
	if err != nil {
		return err
	}

	if lo > hi || hi > s.arr.Len() {
		return fmt.Errorf("range [%d, %d) not within [0, %d): %w", lo, hi, s.arr.Len(), mmvec.ErrOutOfRange)
	}

	key := fmt.Sprintf("%d:%d:%d", s.gen, lo, hi)

	sum, status, err := s.sums.Do(ctx, key, nil, func(ctx context.Context, out *int64) error {
		elems, sliceErr := s.arr.Slice()
		if sliceErr != nil {
			return sliceErr
		}

		for i, v := range elems[lo:hi] {
			if i%(1<<20) == 0 && ctx.Err() != nil {
				return ctx.Err()
			}

			*out += v
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.o.Printf("%d (%s)\n", *sum, status)

	return nil
}

func (s *shell) cmdInfo() {
	stats := s.sums.Stats()

	s.o.Printf("path:  %s\n", s.arr.Path())
	s.o.Printf("len:   %d\n", s.arr.Len())
	s.o.Printf("cap:   %d\n", s.arr.Cap())
	s.o.Printf("bytes: %d\n", s.arr.ByteSize())
	s.o.Printf("sums:  %d hits, %d computed\n", stats.Hits, stats.Creates)
}
