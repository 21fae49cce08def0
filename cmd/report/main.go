// Command report exports the admin dashboard as a PDF or XLSX file using the
// admin API.
//
//	report -api https://api.example.com/api/v1 -token $JWT -start 2024-10-01 -end 2024-10-31 -format xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fleurease/fleurease-api/internal/dashboard"
	"github.com/fleurease/fleurease-api/internal/report"
	"github.com/fleurease/fleurease-api/pkg/adminclient"
)

const (
	exitOK             = 0
	exitFailure        = 1
	exitSessionExpired = 2
	exitForbidden      = 3
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, time.Now))
}

type options struct {
	api       string
	token     string
	start     string
	end       string
	sections  string
	format    string
	out       string
	ordersCap int
	timeout   time.Duration
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.api, "api", os.Getenv("FLEUREASE_API"), "API root, e.g. https://api.example.com/api/v1")
	fs.StringVar(&o.token, "token", os.Getenv("FLEUREASE_TOKEN"), "admin session token")
	fs.StringVar(&o.start, "start", "", "first day, YYYY-MM-DD (optional)")
	fs.StringVar(&o.end, "end", "", "last day, YYYY-MM-DD (optional)")
	fs.StringVar(&o.sections, "sections", "", "comma-separated: summary,products,monthly,orders (default all)")
	fs.StringVar(&o.format, "format", "pdf", "pdf or xlsx")
	fs.StringVar(&o.out, "out", "", "output file (default: generated name in the current directory)")
	fs.IntVar(&o.ordersCap, "orders-cap", report.DefaultOrdersCap, "orders listed when no date range is given")
	fs.DurationVar(&o.timeout, "timeout", time.Minute, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.api == "" {
		return o, errors.New("-api is required")
	}
	if o.token == "" {
		return o, errors.New("-token is required")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stderr io.Writer, now func() time.Time) int {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	o, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "report:", err)
		}
		return exitFailure
	}

	start, err := parseDay(o.start)
	if err != nil {
		fmt.Fprintln(stderr, "report: -start:", err)
		return exitFailure
	}
	end, err := parseDay(o.end)
	if err != nil {
		fmt.Fprintln(stderr, "report: -end:", err)
		return exitFailure
	}
	if start != nil && end != nil && end.Before(*start) {
		fmt.Fprintln(stderr, "report: -start must not be after -end")
		return exitFailure
	}

	sections, err := report.ParseSections(o.sections)
	if err != nil {
		fmt.Fprintln(stderr, "report:", err)
		return exitFailure
	}

	var renderer report.Renderer
	switch o.format {
	case "pdf":
		renderer = report.NewPDFRenderer()
	case "xlsx":
		renderer = report.NewXLSXRenderer()
	default:
		fmt.Fprintf(stderr, "report: unknown format %q\n", o.format)
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client := adminclient.New(o.api, adminclient.WithLogger(logger))
	snap, err := client.LoadSnapshot(ctx, adminclient.Session{Token: o.token})
	switch {
	case errors.Is(err, adminclient.ErrSessionExpired):
		fmt.Fprintln(stderr, "report: session expired, sign in again")
		return exitSessionExpired
	case errors.Is(err, adminclient.ErrForbidden):
		fmt.Fprintln(stderr, "report: this account is not an admin")
		return exitForbidden
	case err != nil:
		fmt.Fprintln(stderr, "report: failed to load dashboard:", err)
		return exitFailure
	}

	view := dashboard.ApplyDateRange(snap, start, end)
	doc := report.Build(view, sections, o.ordersCap)

	path := o.out
	if path == "" {
		path = report.Filename(view, now(), renderer.Extension())
	}
	if err := writeFile(path, renderer, doc); err != nil {
		fmt.Fprintln(stderr, "report:", err)
		return exitFailure
	}

	fmt.Fprintln(stderr, "report written to", path)
	return exitOK
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("want YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

// writeFile renders into a temp file next to path and renames it, so a
// failed render never leaves a truncated report behind.
func writeFile(path string, r report.Renderer, doc report.Document) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := r.Render(tmp, doc); err != nil {
		tmp.Close()
		return fmt.Errorf("render %s: %w", r.Extension(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
