// Command timesplit serves the fold exploration dashboard and creates new
// dashboard projects.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
)

type command struct {
	summary string
	run     func(ctx context.Context, args []string, out *console) error
}

var commands = map[string]command{
	"get-path":     {"Print the path of the dashboard executable.", getPath},
	"start":        {"Start the dashboard.", start},
	"new":          {"Create a dashboard project from a template.", newProject},
	"print-config": {"Print config options.", printConfig},
	"version":      {"Print version information.", printVersion},
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], newConsole(os.Stdout)))
}

// exitCodeError ends the process with a specific exit code.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func run(ctx context.Context, args []string, out *console) int {
	if len(args) == 0 {
		usage(out)
		return exitError
	}
	switch args[0] {
	case "-h", "--help", "help":
		usage(out)
		return exitOK
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "timesplit: unknown command %q\n", args[0])
		usage(out)
		return exitError
	}

	if err := cmd.run(ctx, args[1:], out); err != nil {
		fmt.Fprintf(os.Stderr, "timesplit %s: %v\n", args[0], err)
		var ec *exitCodeError
		if errors.As(err, &ec) {
			return ec.code
		}
		return exitError
	}
	return exitOK
}

func usage(out *console) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "Start the fold explorer dashboard or create your own.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: timesplit <command> [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(out, "  %-14s %s\n", name, commands[name].summary)
	}
}

// console writes to stdout, in colour when it is a terminal.
type console struct {
	io.Writer
	color bool
}

func newConsole(f *os.File) *console {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return &console{Writer: colorable.NewColorable(f), color: tty}
}

// Success prints a line in green.
func (c *console) Success(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if c.color {
		line = "\x1b[32m" + line + "\x1b[0m"
	}
	fmt.Fprintln(c, strings.TrimRight(line, "\n"))
}
