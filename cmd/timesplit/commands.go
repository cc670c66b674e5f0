package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/ardanlabs/conf"

	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/scaffold"
	"github.com/aaronlmathis/timesplit/internal/version"
)

// envPrefix namespaces the environment fallbacks of command options.
const envPrefix = "TIMESPLIT"

// parseArgs parses command options. It returns false if help was printed.
func parseArgs(args []string, out *console, cfg any) (bool, error) {
	if err := conf.Parse(args, envPrefix, cfg); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			usage, err := conf.Usage(envPrefix, cfg)
			if err != nil {
				return false, fmt.Errorf("generating usage: %w", err)
			}
			fmt.Fprintln(out, usage)
			return false, nil
		}
		return false, fmt.Errorf("parsing options: %w", err)
	}
	return true, nil
}

// getPath prints the absolute path of the executable, for use in container
// images.
func getPath(_ context.Context, args []string, out *console) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	path, err := executablePath()
	if err != nil {
		return err
	}
	fmt.Fprint(out, path)
	return nil
}

func executablePath() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", err
	}
	path, err = filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

func newProject(_ context.Context, args []string, out *console) error {
	var opts struct {
		Out string `conf:"default:my-time-split-app,help:Output directory."`
	}
	if ok, err := parseArgs(args, out, &opts); !ok {
		return err
	}

	if _, err := scaffold.Create(opts.Out); err != nil {
		return err
	}
	out.Success("Project directory '%s' created. See the README to get started.", opts.Out)
	return nil
}

func printConfig(_ context.Context, args []string, out *console) error {
	var opts struct {
		NoSort   bool `conf:"help:Disable sorting of config options by name."`
		NoValues bool `conf:"help:Do not show current config values."`
	}
	if ok, err := parseArgs(args, out, &opts); !ok {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if opts.NoValues {
		fmt.Fprintln(tw, "Name\tType\tDescription")
	} else {
		fmt.Fprintln(tw, "Name\tType\tValue\tDescription")
	}
	for _, o := range cfg.Options(!opts.NoSort) {
		if opts.NoValues {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Name, o.Type, o.Description)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Name, o.Type, o.Value, o.Description)
		}
	}
	return tw.Flush()
}

func printVersion(_ context.Context, _ []string, out *console) error {
	fmt.Fprintln(out, version.Get().String())
	return nil
}
