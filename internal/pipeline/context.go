package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/perceptionbench/kneepoint/internal/resolution"
	"github.com/perceptionbench/kneepoint/internal/results"
)

// Context carries the shared state of one pipeline run: configuration,
// logging, directory layout and the optional in-memory result table. It is
// built once in main and passed explicitly to every component; nothing in the
// pipeline reads process-wide state.
type Context struct {
	Config *Config
	Log    *zap.SugaredLogger

	// ResultsCache holds the result table between pipeline stages when
	// knee_discovery.cache_results is set. Nil means reload from disk.
	ResultsCache *results.Table
}

// NewContext builds a run context. A nil logger is replaced with a no-op
// logger so components can log unconditionally.
func NewContext(cfg *Config, log *zap.SugaredLogger) *Context {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Context{Config: cfg, Log: log}
}

// BaselineSize returns the baseline resolution of the preprocessed set.
func (c *Context) BaselineSize() resolution.Pair {
	return resolution.Pair{Width: c.Config.Preprocess.ImageSize, Height: c.Config.Preprocess.ImageSize}
}

// BaselineDir returns the directory holding the unmodified validation images.
func (c *Context) BaselineDir() string {
	size := c.BaselineSize()
	sub := expand(c.Config.Preprocess.ValBaselineSubdir, size, size, c.Config.Preprocess.Stride)
	return filepath.Join(c.Config.Preprocess.Dir, sub)
}

// DegradedDir returns the directory for degraded copies at the given
// effective resolution.
func (c *Context) DegradedDir(orig, eff resolution.Pair) string {
	sub := expand(c.Config.Preprocess.ValDegradedSubdir, orig, eff, c.Config.Preprocess.Stride)
	return filepath.Join(c.Config.Preprocess.Dir, sub)
}

// ResultsDir returns the knee discovery output directory.
func (c *Context) ResultsDir() string {
	return filepath.Join(c.Config.Discovery.OutputDir, c.Config.Discovery.OutputSubdir)
}

// ResultsFile returns the path of the persisted result table.
func (c *Context) ResultsFile() string {
	return filepath.Join(c.ResultsDir(), c.Config.Discovery.EvalResultsFilename)
}

// KneeLogFile returns the path of the append-only knee event log.
func (c *Context) KneeLogFile() string {
	return filepath.Join(c.ResultsDir(), c.Config.Discovery.KneeLogFilename)
}

// expand substitutes the directory template placeholders.
func expand(template string, orig, eff resolution.Pair, stride int) string {
	return strings.NewReplacer(
		"{width}", strconv.Itoa(orig.Width),
		"{height}", strconv.Itoa(orig.Height),
		"{effwidth}", strconv.Itoa(eff.Width),
		"{effheight}", strconv.Itoa(eff.Height),
		"{stride}", strconv.Itoa(stride),
	).Replace(template)
}
