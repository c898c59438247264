// Package evalproc adapts an external model-evaluation command to the
// discovery.Evaluator contract. The command is expected to score the images
// in the degraded directory and append or update rows in the persisted
// result table; this adapter only launches it and refreshes the in-memory
// cache afterwards.
package evalproc

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/resolution"
	"github.com/perceptionbench/kneepoint/internal/results"
)

// ExecEvaluator runs a configured external command per evaluation.
type ExecEvaluator struct {
	command string
	args    []string
}

// New builds the evaluator from the pipeline eval configuration.
func New(cfg pipeline.EvalConfig) *ExecEvaluator {
	return &ExecEvaluator{command: cfg.Command, args: cfg.Args}
}

// RunEval launches the evaluation command synchronously. After a successful
// run the result table cache, when enabled, is reloaded from disk so the
// core sees the rows the command wrote.
func (e *ExecEvaluator) RunEval(ctx *pipeline.Context, orig, eff resolution.Pair, assetDir, tag string) error {
	if e.command == "" {
		return fmt.Errorf("no evaluation command configured")
	}

	args := expandArgs(e.args, orig, eff, assetDir, tag, ctx.ResultsFile())
	ctx.Log.Debugw("running evaluation", "command", e.command, "args", args)

	cmd := exec.Command(e.command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("evaluation command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}

	if ctx.ResultsCache != nil {
		table, err := results.Load(ctx.ResultsFile())
		if err != nil {
			return fmt.Errorf("reload results after evaluation: %w", err)
		}
		ctx.ResultsCache = table
	}
	return nil
}

// expandArgs substitutes the evaluation placeholders in each argument.
func expandArgs(args []string, orig, eff resolution.Pair, assetDir, tag, resultsFile string) []string {
	rep := strings.NewReplacer(
		"{width}", strconv.Itoa(orig.Width),
		"{height}", strconv.Itoa(orig.Height),
		"{effwidth}", strconv.Itoa(eff.Width),
		"{effheight}", strconv.Itoa(eff.Height),
		"{dir}", assetDir,
		"{tag}", tag,
		"{results}", resultsFile,
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = rep.Replace(a)
	}
	return out
}
