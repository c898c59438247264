package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/perceptionbench/kneepoint/internal/degrade"
	"github.com/perceptionbench/kneepoint/internal/discovery"
	"github.com/perceptionbench/kneepoint/internal/evalproc"
	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/report"
	"github.com/perceptionbench/kneepoint/internal/results"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version before flag parsing so it works without a config
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("kneepoint %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		}
	}

	configPath := flag.String("config", "config.yaml", "path to the pipeline configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kneepoint: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Verbose = true
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kneepoint: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()
	log.Debugw("kneepoint", "version", Version, "build_time", BuildTime, "commit", GitCommit)

	ctx := pipeline.NewContext(cfg, log)
	runner := discovery.NewRunner(ctx, degrade.New(ctx), evalproc.New(cfg.Eval))
	if err := runner.Run(); err != nil {
		log.Fatalw("knee discovery failed", "error", err)
	}

	if cfg.Discovery.PlotCurves {
		if err := renderCurves(ctx); err != nil {
			log.Fatalw("plotting failed", "error", err)
		}
	}
}

// renderCurves draws the resolution/metric curves next to the result table.
func renderCurves(ctx *pipeline.Context) error {
	table := ctx.ResultsCache
	if table == nil {
		var err error
		table, err = results.Load(ctx.ResultsFile())
		if err != nil {
			return err
		}
	}
	path := filepath.Join(ctx.ResultsDir(), "iapc_curves.png")
	if err := report.Render(table, path); err != nil {
		return err
	}
	ctx.Log.Infow("curves rendered", "path", path)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func usage() {
	fmt.Fprintln(os.Stderr, "kneepoint - adaptive resolution knee discovery for perception models")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: kneepoint [options]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  --config PATH    Pipeline configuration file (default config.yaml)")
	fmt.Fprintln(os.Stderr, "  --verbose        Enable debug logging")
	fmt.Fprintln(os.Stderr, "  --version, -v    Print version information")
}
