// Command tbl reads, validates, converts and appends to table documents.
//
// Table documents are SML documents whose root element is Table, holding an
// optional Meta element, a column names attribute and one attribute per row.
// Files ending in .btbl use the binary encoding. Defaults are read from
// tbl.yaml in the working directory when present.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/maruel/tbl/internal/config"
	"github.com/maruel/tbl/internal/logging"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tbl: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout)
}

// app holds what every command needs.
type app struct {
	cfg   *config.Config
	flags *pflag.FlagSet
	in    io.Reader
	out   io.Writer
}

type command struct {
	args  string
	help  string
	run   func(ctx context.Context, a *app, args []string) error
	flags func(fs *pflag.FlagSet)
}

var commands map[string]*command

func init() {
	commands = map[string]*command{
		"append":   appendCmd,
		"cat":      {args: "FILE", help: "print a document in the configured format", run: catCmd},
		"convert":  convertCmd,
		"export":   {args: "FILE", help: "print a document as JSON", run: exportCmd},
		"import":   {args: "JSON OUT", help: "write a document from its JSON form", run: importCmd},
		"schema":   {help: "print the JSON Schema of the export format", run: schemaCmd},
		"validate": {args: "FILE...", help: "check documents and count their rows", run: validateCmd},
		"watch":    watchCmd,
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := pflag.NewFlagSet("tbl", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", config.FileName, "configuration file")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	format := fs.String("format", "", "output format (default, minified, aligned)")
	chunkSize := fs.Int("chunk-size", 0, "read buffer size in bytes")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(out, fs)
			return nil
		}
		return err
	}
	cfg, err := config.Load(*configPath, !fs.Changed("config"))
	if err != nil {
		return err
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("format") {
		cfg.Format = config.Format(*format)
	}
	if fs.Changed("chunk-size") {
		cfg.ChunkSize = *chunkSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(level))

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(out, fs)
		return errors.New("command expected")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}
	cfs := pflag.NewFlagSet("tbl "+rest[0], pflag.ContinueOnError)
	cfs.SetOutput(io.Discard)
	if cmd.flags != nil {
		cmd.flags(cfs)
	}
	if err := cfs.Parse(rest[1:]); err != nil {
		return fmt.Errorf("%s: %w", rest[0], err)
	}
	return cmd.run(ctx, &app{cfg: cfg, flags: cfs, in: in, out: out}, cfs.Args())
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "usage: tbl [flags] <command> [args]\n\nCommands:\n")
	for _, name := range slices.Sorted(maps.Keys(commands)) {
		c := commands[name]
		fmt.Fprintf(w, "  %-28s %s\n", strings.TrimSpace(name+" "+c.args), c.help)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", fs.FlagUsages())
}

// exactArgs checks the number of positional arguments.
func exactArgs(args []string, n int, names string) error {
	if len(args) != n {
		return fmt.Errorf("expected %s", names)
	}
	return nil
}
