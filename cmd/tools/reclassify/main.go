// Command reclassify replays a recorded export through the environment
// classifier, optionally with different thresholds, and reports where the
// classification changed.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/export"
	"github.com/banshee-data/tunnel.report/internal/fsutil"
	"github.com/banshee-data/tunnel.report/internal/httputil"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/security"
	"github.com/banshee-data/tunnel.report/internal/sensor"
	"github.com/banshee-data/tunnel.report/internal/units"
)

type options struct {
	input           string
	csvOut          string
	plotOut         string
	displayCapacity int
	thresholds      classify.Thresholds
	units           string
	quiet           bool
}

func main() {
	def := classify.DefaultThresholds()
	var opts options
	flag.StringVar(&opts.input, "in", "", "export document to replay (file path or http(s) URL)")
	flag.StringVar(&opts.csvOut, "csv", "", "write the samples as CSV to this path")
	flag.StringVar(&opts.plotOut, "plot", "", "write a PNG of the window average to this path")
	flag.IntVar(&opts.displayCapacity, "display", recording.DefaultDisplayCapacity, "display buffer capacity")
	flag.IntVar(&opts.thresholds.WindowSize, "window", def.WindowSize, "classification window size")
	flag.IntVar(&opts.thresholds.MinSamples, "min-samples", def.MinSamples, "samples required before classifying")
	flag.Float64Var(&opts.thresholds.TunnelAcceleration, "tunnel-accel", def.TunnelAcceleration, "in-tunnel average acceleration threshold")
	flag.Float64Var(&opts.thresholds.StillAcceleration, "still-accel", def.StillAcceleration, "stationary average acceleration threshold")
	flag.IntVar(&opts.thresholds.TunnelOrientationChanges, "tunnel-changes", def.TunnelOrientationChanges, "in-tunnel orientation change threshold")
	flag.IntVar(&opts.thresholds.StillOrientationChanges, "still-changes", def.StillOrientationChanges, "stationary orientation change threshold")
	flag.StringVar(&opts.units, "units", units.MPS2, "acceleration units for the report ("+units.GetValidUnitsString()+")")
	flag.BoolVar(&opts.quiet, "quiet", false, "print the summary only")
	flag.Parse()

	if opts.input == "" && flag.NArg() > 0 {
		opts.input = flag.Arg(0)
	}
	if opts.input == "" {
		log.Fatal("an export document is required (-in)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := run(ctx, opts, fsutil.OSFileSystem{}, nil, os.Stdout); err != nil {
		log.Fatalf("reclassify: %v", err)
	}
}

// run loads, replays and reports on one export document.
func run(ctx context.Context, opts options, fs fsutil.FileSystem, client httputil.HTTPClient, out io.Writer) error {
	classifier, err := classify.New(opts.thresholds)
	if err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	if opts.units != "" && !units.IsValid(opts.units) {
		return fmt.Errorf("invalid units %q, expected %s", opts.units, units.GetValidUnitsString())
	}
	for _, p := range []string{opts.csvOut, opts.plotOut} {
		if p == "" {
			continue
		}
		if err := security.ValidateExportPath(p); err != nil {
			return err
		}
	}

	doc, err := loadDocument(ctx, opts.input, fs, client)
	if err != nil {
		return err
	}

	res := Replay(doc, classifier, opts.displayCapacity)
	report(out, doc, res, opts.units, opts.quiet)

	if opts.csvOut != "" {
		if err := writeCSV(fs, opts.csvOut, doc); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", opts.csvOut)
	}
	if opts.plotOut != "" {
		if err := fs.MkdirAll(filepath.Dir(opts.plotOut), 0755); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
		if err := writePlot(fs, opts.plotOut, res, classifier.Thresholds()); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", opts.plotOut)
	}
	return nil
}

func loadDocument(ctx context.Context, input string, fs fsutil.FileSystem, client httputil.HTTPClient) (*export.Document, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		body, err := httputil.Fetch(ctx, client, input)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return export.Parse(body)
	}
	data, err := fs.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input, err)
	}
	return export.Parse(bytes.NewReader(data))
}

func writeCSV(fs fsutil.FileSystem, path string, doc *export.Document) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func report(out io.Writer, doc *export.Document, res Result, unit string, quiet bool) {
	duration := time.Duration(doc.Metadata.RecordingDurationMs) * time.Millisecond
	fmt.Fprintf(out, "replayed %s samples spanning %s (exported %s)\n",
		humanize.Comma(int64(res.Samples)), duration, doc.Metadata.ExportTime)

	if !quiet {
		for _, tr := range res.Transitions {
			fmt.Fprintf(out, "  #%-7s %s  %s -> %s  (avg %.3f %s, %d orientation changes)\n",
				humanize.Comma(int64(tr.Index)), tr.Timestamp, tr.From, tr.To,
				units.ConvertAcceleration(tr.Avg, unit), units.Symbol(unit), tr.Changes)
		}
	}

	statuses := make([]classify.Status, 0, len(res.Counts))
	for st := range res.Counts {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return res.Counts[statuses[i]] > res.Counts[statuses[j]] })
	for _, st := range statuses {
		n := res.Counts[st]
		fmt.Fprintf(out, "  %-22s %s samples (%.1f%%)\n", st, humanize.Comma(int64(n)), 100*float64(n)/float64(res.Samples))
	}

	fmt.Fprintf(out, "%d transitions, final status: %s\n", len(res.Transitions), res.Final.Message)
	if n := motionSamples(doc.SensorData); n > 0 {
		fmt.Fprintf(out, "%s motion samples, %s orientation samples\n",
			humanize.Comma(int64(n)), humanize.Comma(int64(res.Samples-n)))
	}
}

func motionSamples(samples []sensor.Sample) int {
	n := 0
	for _, s := range samples {
		if s.IsMotion() {
			n++
		}
	}
	return n
}
