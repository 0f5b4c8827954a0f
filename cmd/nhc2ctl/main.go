// nhc2ctl - Niko Home Control II command-line client
//
// nhc2ctl talks to one NHC2 controller over its MQTT interface. It can
// check a profile's credentials, print the controller's system info, list
// and watch devices, and send a state change to a single device.
//
// Configuration comes from the YAML file named by NHC2_CONFIG (default
// configs/config.yaml, optional) and NHC2_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// errUsage is returned for a bad command line; main exits with status 2.
var errUsage = errors.New("usage error")

// app carries what every subcommand needs.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	stdout io.Writer
	stderr io.Writer
}

type subcommand struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]subcommand{
	"probe": {"check the configured credentials and print the controller's answer", runProbe},
	"info":  {"print the controller's system info", runInfo},
	"list":  {"list devices", runList},
	"watch": {"print device changes until interrupted", runWatch},
	"act":   {"change the state of one device", runAct},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand, separated from main for testability.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}
	if args[0] == "version" {
		fmt.Fprintf(stdout, "nhc2ctl %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return errUsage
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Records go to stderr; stdout carries command output.
	log := logging.NewWithWriter(cfg.Logging, version, stderr)

	return cmd.run(ctx, &app{cfg: cfg, log: log, stdout: stdout, stderr: stderr}, args[1:])
}

// getConfigPath returns the configuration file path.
// Uses NHC2_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NHC2_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: nhc2ctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-6s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "  %-6s %s\n", "version", "print the build version")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("nhc2ctl "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// parse parses args and rejects positional leftovers.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return errUsage
	}
	return nil
}
