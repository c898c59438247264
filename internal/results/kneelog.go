package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// KneeLog appends every detected knee event to a CSV file. It is an
// append-only audit trail across detector re-runs, distinct from the single
// knee flag written onto table rows at the end of refinement.
type KneeLog struct {
	path string
}

// NewKneeLog returns a log writing to path. The file is created on first
// append.
func NewKneeLog(path string) *KneeLog {
	return &KneeLog{path: path}
}

// RecordKnee appends one knee event.
func (l *KneeLog) RecordKnee(class string, orig resolution.Pair, factor, metric float64) error {
	_, statErr := os.Stat(l.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open knee log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write([]string{"timestamp", "object_name", "original_width", "original_height", "degradation_factor", "mAP"}); err != nil {
			return fmt.Errorf("write knee log header: %w", err)
		}
	}
	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		class,
		strconv.Itoa(orig.Width),
		strconv.Itoa(orig.Height),
		strconv.FormatFloat(factor, 'g', -1, 64),
		strconv.FormatFloat(metric, 'g', -1, 64),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write knee log row: %w", err)
	}
	w.Flush()
	return w.Error()
}
