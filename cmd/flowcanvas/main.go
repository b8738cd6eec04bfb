// Package main provides the flowcanvas CLI application
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/config"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/pkg/flowcanvas"
	"github.com/flowcanvas/flowcanvas/pkg/prebuilt"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `flowcanvas - visual workflow runner

Usage:
  flowcanvas version
  flowcanvas catalog
  flowcanvas templates
  flowcanvas run [flags] [template|file.json]

Run flags:
  -delay-scale float   multiply simulated handler delays (default from FLOWCANVAS_DELAY_SCALE)
  -json                print the run summary as JSON
  -save                store the document in the configured store before running
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "flowcanvas %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	case "catalog":
		err = printCatalog(stdout)
	case "templates":
		err = printTemplates(stdout)
	case "run":
		err = runWorkflow(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printCatalog(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	categories := graph.Categories()
	for _, c := range graph.SortedCategories() {
		fmt.Fprintf(tw, "%s\n", c)
		for _, d := range categories[c] {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", d.Type, d.Label, d.Description)
		}
	}
	return tw.Flush()
}

func printTemplates(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range prebuilt.DefaultRegistry.Names() {
		b, _ := prebuilt.DefaultRegistry.Get(name)
		fmt.Fprintf(tw, "%s\t%s\n", name, b.Description())
	}
	return tw.Flush()
}

func runWorkflow(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	delayScale := fs.Float64("delay-scale", -1, "multiply simulated handler delays")
	asJSON := fs.Bool("json", false, "print the run summary as JSON")
	save := fs.Bool("save", false, "store the document before running")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if *delayScale >= 0 {
		cfg.Engine.DelayScale = *delayScale
	}

	source := prebuilt.Demo
	if fs.NArg() > 0 {
		source = fs.Arg(0)
	}
	doc, err := loadDocument(ctx, source)
	if err != nil {
		return err
	}

	rt, err := flowcanvas.New(ctx, cfg, flowcanvas.WithLogger(cfg.Logger(stderr)))
	if err != nil {
		return err
	}
	defer rt.Close()

	if *save {
		if err := rt.SaveWorkflow(ctx, doc); err != nil {
			return fmt.Errorf("save %s: %w", doc.ID, err)
		}
	}

	if !*asJSON {
		unsubscribe := rt.Workspace().Subscribe(func(e eventlog.Entry) {
			fmt.Fprintln(stdout, formatEntry(e))
		})
		defer unsubscribe()
	}

	summary, err := rt.RunGraph(ctx, doc)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Fprintf(stdout, "\nrun %s: %s, %d executed, %d failed in %s\n",
		summary.RunID, summary.Status, summary.Executed(), summary.Failed(), summary.Duration.Round(time.Millisecond))
	return nil
}

// loadDocument resolves source as a template name first, then as a file.
func loadDocument(ctx context.Context, source string) (*flowcanvas.Graph, error) {
	if _, ok := prebuilt.DefaultRegistry.Get(source); ok {
		return prebuilt.DefaultRegistry.Build(ctx, source, prebuilt.Options{})
	}
	f, err := os.Open(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%q is neither a template nor a file", source)
		}
		return nil, err
	}
	defer f.Close()

	// Canvas exports carry no id; the file name stands in before validation.
	var g flowcanvas.Graph
	if err := json.NewDecoder(f).Decode(&g); err != nil {
		return nil, fmt.Errorf("read %s: invalid JSON: %w", source, err)
	}
	if g.ID == "" {
		g.ID = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	if err := validation.ValidateGraph(&g); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return &g, nil
}

func formatEntry(e eventlog.Entry) string {
	return fmt.Sprintf("[%s] %-7s %s: %s", e.Timestamp.Format("15:04:05"), e.Severity, e.NodeLabel, e.Message)
}
