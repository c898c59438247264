package discovery

import (
	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// Evaluator is the external model-evaluation oracle. RunEval computes the
// per-class metric over the images in assetDir and records the resulting
// rows in the persisted result table (and the in-memory cache when one is
// configured) as a side effect; the core consumes no return value and
// re-reads the table after each call. Calls are blocking and potentially
// expensive; callers wanting timeouts must wrap the oracle themselves.
type Evaluator interface {
	RunEval(ctx *pipeline.Context, orig, eff resolution.Pair, assetDir, tag string) error
}

// AssetDegrader produces degraded image and label pairs for a target
// resolution. Per-image failures are absorbed into the corrupted count,
// never raised.
type AssetDegrader interface {
	Degrade(orig, eff resolution.Pair, degradedDir string) (numImages, corrupted int, err error)
}
