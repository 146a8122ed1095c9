// Command tracehist prints the event density histogram of a trace.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"honnef.co/go/tracehist/histogram"
	"honnef.co/go/tracehist/ingest"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "tracehist",
		Usage:     "print the event density histogram of a trace",
		ArgsUsage: "<trace file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: "gotrace", Usage: "input format, gotrace or json"},
			&cli.IntFlag{Name: "buckets", Value: histogram.DefaultBucketCount, Usage: "number of buckets in the model"},
			&cli.IntFlag{Name: "width", Value: 80, Usage: "width of the histogram"},
			&cli.IntFlag{Name: "height", Value: 100, Usage: "height of the histogram"},
			&cli.IntFlag{Name: "bar-width", Value: 1, Usage: "width of a single bar"},
			&cli.Int64Flag{Name: "range-start", Usage: "start of the trace's time range, if known"},
			&cli.Int64Flag{Name: "range-end", Usage: "end of the trace's time range, if known"},
			&cli.Int64Flag{Name: "select-start", Usage: "start of the selected time range"},
			&cli.Int64Flag{Name: "select-end", Usage: "end of the selected time range"},
			&cli.BoolFlag{Name: "hide-lost", Usage: "don't include lost events in the scale"},
			&cli.BoolFlag{Name: "metrics", Usage: "print ingestion metrics"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every redraw"},
		},
		Action: run,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type config struct {
	path     string
	format   string
	buckets  int
	width    int
	height   int
	barWidth int
	hideLost bool
}

func configFromContext(c *cli.Context) (config, error) {
	if c.NArg() != 1 {
		return config{}, errors.New("expected exactly one trace file")
	}
	cfg := config{
		path:     c.Args().First(),
		format:   c.String("format"),
		buckets:  c.Int("buckets"),
		width:    c.Int("width"),
		height:   c.Int("height"),
		barWidth: c.Int("bar-width"),
		hideLost: c.Bool("hide-lost"),
	}
	if cfg.buckets <= 0 || cfg.buckets%2 != 0 {
		return config{}, errors.Errorf("number of buckets must be positive and even, got %d", cfg.buckets)
	}
	if cfg.width <= 0 || cfg.height <= 0 || cfg.barWidth <= 0 || cfg.barWidth > cfg.width {
		return config{}, errors.Errorf("invalid dimensions %dx%d with bar width %d", cfg.width, cfg.height, cfg.barWidth)
	}
	switch cfg.format {
	case "gotrace", "json":
	default:
		return config{}, errors.Errorf("unknown format %q", cfg.format)
	}
	if c.IsSet("range-start") && !c.IsSet("range-end") {
		return config{}, errors.New("--range-start requires --range-end")
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := configFromContext(c)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	f, err := ingest.Open(cfg.path)
	if err != nil {
		return err
	}
	defer f.Close()

	m := histogram.New(0, cfg.buckets)
	if c.IsSet("range-end") {
		m.SetTimeRange(c.Int64("range-start"), c.Int64("range-end"))
	}
	selected := c.IsSet("select-start") || c.IsSet("select-end")
	if selected {
		m.SetSelection(c.Int64("select-start"), c.Int64("select-end"))
	}

	var src ingest.Source
	switch cfg.format {
	case "gotrace":
		gsrc, err := ingest.NewGoTraceSource(f)
		if err != nil {
			return err
		}
		m.SetTrace(gsrc)
		src = gsrc
	case "json":
		src = ingest.NewJSONSource(f)
	}

	reg := prometheus.NewRegistry()
	req := &ingest.Request{
		Model:     m,
		Source:    src,
		FullRange: !c.IsSet("range-end"),
		Logger:    logger,
		Metrics:   ingest.NewMetrics(reg),
	}

	if err := ingestAndRedraw(ctx, logger, req, cfg); err != nil {
		return err
	}

	printHistogram(c.App.Writer, m.ScaleTo(cfg.width, cfg.height, cfg.barWidth), cfg.hideLost, selected)
	if c.Bool("metrics") {
		if err := printMetrics(c.App.Writer, reg); err != nil {
			return err
		}
	}
	return nil
}

// ingestAndRedraw runs the request while recomputing the projection whenever the model reports a change, the way a
// view would.
func ingestAndRedraw(ctx context.Context, logger *slog.Logger, req *ingest.Request, cfg config) error {
	updates := make(chan struct{}, 1)
	id := req.Model.AddListener(histogram.ListenerFunc(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}))
	defer req.Model.RemoveListener(id)

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		res, err := req.Run(gctx)
		if res.Cancelled {
			logger.Warn("ingestion was interrupted, histogram is incomplete", "events", res.Read)
			return nil
		}
		return err
	})
	g.Go(func() error {
		for {
			select {
			case <-updates:
				sd := req.Model.ScaleTo(cfg.width, cfg.height, cfg.barWidth)
				logger.Debug("redraw", "bars", sd.NumBars(), "max", sd.Max(cfg.hideLost), "last_bar", sd.LastBucket)
			case <-done:
				return nil
			}
		}
	})
	return g.Wait()
}

func printHistogram(w io.Writer, sd *histogram.ScaledData, hideLost, selected bool) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%-6s %20s %14s %10s\n", "bar", "start", "events", "lost")
	for i, b := range sd.Buckets {
		mark := ""
		if selected && i >= sd.SelectionBeginBucket && i <= sd.SelectionEndBucket {
			mark = " *"
		}
		p.Fprintf(w, "%-6d %20d %14d %10d%s\n", i, sd.BucketStartTime(i), b.Count(), sd.Lost[i], mark)
	}
	p.Fprintf(w, "max %d, scale %.4f\n", sd.Max(hideLost), sd.Scale(hideLost))
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "couldn't gather metrics")
	}
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range metric.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", l.GetName(), l.GetValue())
			}
			fmt.Fprintf(w, "%s %g\n", name, metric.GetCounter().GetValue())
		}
	}
	return nil
}
