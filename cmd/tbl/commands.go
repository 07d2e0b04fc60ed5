package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/maruel/tbl/internal/config"
	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/tbl"
	"github.com/maruel/tbl/wsv"
)

// binaryExt marks binary documents.
const binaryExt = ".btbl"

func isBinary(path string) bool {
	return strings.EqualFold(filepath.Ext(path), binaryExt)
}

func (a *app) load(path string) (*tbl.Document, error) {
	if isBinary(path) {
		return tbl.LoadBinary(path)
	}
	return tbl.Load(path)
}

func (a *app) openReader(path string) (*tbl.Reader, error) {
	if isBinary(path) {
		return tbl.OpenBinaryReader(path, tbl.WithChunkSize(a.cfg.ChunkSize))
	}
	return tbl.OpenReader(path, tbl.WithChunkSize(a.cfg.ChunkSize))
}

func (a *app) save(d *tbl.Document, path string) error {
	if isBinary(path) {
		return tbl.SaveBinary(d, path)
	}
	switch a.cfg.Format {
	case config.FormatMinified:
		return tbl.SaveMinified(d, path)
	case config.FormatAligned:
		return tbl.SaveAligned(d, path, a.cfg.RightAligned...)
	default:
		return tbl.Save(d, path)
	}
}

func (a *app) render(d *tbl.Document) string {
	switch a.cfg.Format {
	case config.FormatMinified:
		return d.MinifiedString()
	case config.FormatAligned:
		return d.AlignedString(a.cfg.RightAligned...)
	default:
		return d.String()
	}
}

// printRow writes a row as tab separated values.
func (a *app) printRow(row tbl.Row) error {
	_, err := fmt.Fprintln(a.out, strings.Join(row.Strings(a.cfg.Null), "\t"))
	return err
}

func catCmd(_ context.Context, a *app, args []string) error {
	if err := exactArgs(args, 1, "FILE"); err != nil {
		return err
	}
	d, err := a.load(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, a.render(d))
	return err
}

func validateCmd(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("expected FILE...")
	}
	counts := make([]int, len(args))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Validation.Concurrency)
	for i, path := range args {
		g.Go(func() error {
			n, err := a.countRows(ctx, path)
			if err != nil {
				attrs := []any{"file", path, "err", err}
				var e *tbl.Error
				if errors.As(err, &e) {
					attrs = append(attrs, e.LogAttrs()...)
				}
				slog.ErrorContext(ctx, "invalid document", attrs...)
				return fmt.Errorf("%s: %w", path, err)
			}
			slog.DebugContext(ctx, "valid document", "file", path, "rows", n)
			counts[i] = n
			return nil
		})
	}
	err := g.Wait()
	for i, path := range args {
		if err == nil {
			fmt.Fprintf(a.out, "%s\t%d\n", path, counts[i])
		}
	}
	return err
}

func (a *app) countRows(ctx context.Context, path string) (n int, err error) {
	r, err := a.openReader(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	for _, err := range r.Rows() {
		if err != nil {
			if e, ok := err.(*tbl.Error); ok {
				err = e.WithDetail("row", n)
			}
			return n, err
		}
		n++
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

var appendCmd = &command{
	args: "FILE [VALUE...]",
	help: "append one row, or WSV rows read from stdin with --stdin",
	flags: func(fs *pflag.FlagSet) {
		fs.StringSlice("columns", nil, "column names used when FILE does not exist")
		fs.Bool("stdin", false, "read rows from stdin, one WSV line per row")
	},
	run: func(_ context.Context, a *app, args []string) error {
		if len(args) == 0 {
			return errors.New("expected FILE [VALUE...]")
		}
		columns, _ := a.flags.GetStringSlice("columns")
		stdin, _ := a.flags.GetBool("stdin")
		template, err := a.template(args[0], columns)
		if err != nil {
			return err
		}
		if stdin {
			if len(args) != 1 {
				return errors.New("VALUE... and --stdin are exclusive")
			}
			return a.appendStream(args[0], template)
		}
		if len(args) == 1 {
			return errors.New("expected VALUE... or --stdin")
		}
		row := make(tbl.Row, 0, len(args)-1)
		for _, v := range args[1:] {
			if v == a.cfg.Null {
				row = append(row, nil)
			} else {
				row = append(row, wsv.String(v))
			}
		}
		if isBinary(args[0]) {
			return tbl.AppendRowsBinary([]tbl.Row{row}, template, args[0])
		}
		return tbl.AppendRows([]tbl.Row{row}, template, args[0])
	},
}

func (a *app) template(path string, columns []string) (*tbl.Header, error) {
	enc, err := a.cfg.TextEncoding()
	if err != nil {
		return nil, err
	}
	if len(columns) != 0 {
		h, err := tbl.NewHeader(columns...)
		if err != nil {
			return nil, err
		}
		return h.WithEncoding(enc), nil
	}
	r, err := a.openReader(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("--columns is required to create %s", path)
	}
	if err != nil {
		return nil, err
	}
	return r.Header(), r.Close()
}

// appendStream appends the rows read from stdin.
func (a *app) appendStream(path string, template *tbl.Header) error {
	var w *tbl.Writer
	var err error
	if isBinary(path) {
		w, err = tbl.CreateBinaryWriter(template, path, reliabletxt.CreateOrAppend)
	} else {
		w, err = tbl.CreateWriter(template, path, reliabletxt.CreateOrAppend)
	}
	if err != nil {
		return err
	}
	rs := newRowScanner(a.in)
	err = w.WriteSeq(rs.All())
	return errors.Join(err, rs.Err(), w.Close())
}

// rowScanner reads rows, one per non-empty WSV line.
type rowScanner struct {
	s      *bufio.Scanner
	lineNo int
	err    error
}

func newRowScanner(r io.Reader) *rowScanner {
	return &rowScanner{s: bufio.NewScanner(r)}
}

// All returns an iterator over the rows. It stops at the first error,
// reported by Err.
func (r *rowScanner) All() iter.Seq[tbl.Row] {
	return func(yield func(tbl.Row) bool) {
		for r.s.Scan() {
			r.lineNo++
			values, err := wsv.ParseLine(r.s.Text())
			if err != nil {
				r.err = fmt.Errorf("stdin line %d: %w", r.lineNo, err)
				return
			}
			if len(values) == 0 {
				continue
			}
			if !yield(tbl.Row(values)) {
				return
			}
		}
		r.err = r.s.Err()
	}
}

// Err returns the error that stopped the iteration.
func (r *rowScanner) Err() error {
	return r.err
}

var convertCmd = &command{
	args: "IN OUT",
	help: "rewrite a document, switching to binary when OUT ends in " + binaryExt,
	flags: func(fs *pflag.FlagSet) {
		fs.String("encoding", "", "text encoding of OUT, the encoding of IN by default")
	},
	run: func(_ context.Context, a *app, args []string) error {
		if err := exactArgs(args, 2, "IN OUT"); err != nil {
			return err
		}
		d, err := a.load(args[0])
		if err != nil {
			return err
		}
		if name, _ := a.flags.GetString("encoding"); name != "" {
			enc, err := reliabletxt.ParseEncoding(name)
			if err != nil {
				return err
			}
			d.Header = d.Header.WithEncoding(enc)
		}
		if err := a.save(d, args[1]); err != nil {
			return err
		}
		slog.Info("converted", "in", args[0], "out", args[1], "rows", len(d.Rows))
		return nil
	},
}

func exportCmd(_ context.Context, a *app, args []string) error {
	if err := exactArgs(args, 1, "FILE"); err != nil {
		return err
	}
	d, err := a.load(args[0])
	if err != nil {
		return err
	}
	e := json.NewEncoder(a.out)
	e.SetIndent("", "  ")
	return e.Encode(d.Export())
}

func importCmd(_ context.Context, a *app, args []string) error {
	if err := exactArgs(args, 2, "JSON OUT"); err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var e tbl.Export
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	d, err := e.Document()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return a.save(d, args[1])
}

func schemaCmd(_ context.Context, a *app, args []string) error {
	if err := exactArgs(args, 0, "no argument"); err != nil {
		return err
	}
	e := json.NewEncoder(a.out)
	e.SetIndent("", "  ")
	return e.Encode(tbl.ExportSchema())
}
