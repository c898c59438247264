package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// Column order of the persisted table. Kept stable so downstream pipeline
// stages can consume the file positionally.
var columns = []string{
	"object_name",
	"original_resolution_width",
	"original_resolution_height",
	"effective_resolution_width",
	"effective_resolution_height",
	"mAP",
	"degradation_factor",
	"knee",
}

// Load reads a persisted result table. The degradation factor column is
// ignored and recomputed from the resolution columns on every row; the knee
// column is optional and defaults to false.
//
// A missing file surfaces as a wrapped fs.ErrNotExist so callers can treat
// "table expected but absent" as the fatal case it is.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read results table %s: %w", path, err)
	}
	if len(rows) == 0 {
		return NewTable(), nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, name := range columns[:6] {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("results table %s: missing column %q", path, name)
		}
	}

	t := NewTable()
	for i, row := range rows[1:] {
		rec, err := parseRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("results table %s row %d: %w", path, i+2, err)
		}
		t.Upsert(rec)
	}
	return t, nil
}

func parseRow(row []string, col map[string]int) (Record, error) {
	var rec Record
	rec.ObjectName = row[col["object_name"]]

	dims := make([]int, 4)
	for i, name := range columns[1:5] {
		// resolution columns may carry a float representation (pandas heritage)
		v, err := strconv.ParseFloat(row[col[name]], 64)
		if err != nil {
			return Record{}, fmt.Errorf("parse %s: %w", name, err)
		}
		dims[i] = int(v)
	}
	rec.Original = resolution.Pair{Width: dims[0], Height: dims[1]}
	rec.Effective = resolution.Pair{Width: dims[2], Height: dims[3]}

	m, err := strconv.ParseFloat(row[col["mAP"]], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse mAP: %w", err)
	}
	rec.MAP = m

	if i, ok := col["knee"]; ok && i < len(row) {
		rec.Knee, _ = strconv.ParseBool(row[i])
	}
	return rec, nil
}

// Save overwrites path with the full table.
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range t.records {
		row := []string{
			rec.ObjectName,
			strconv.Itoa(rec.Original.Width),
			strconv.Itoa(rec.Original.Height),
			strconv.Itoa(rec.Effective.Width),
			strconv.Itoa(rec.Effective.Height),
			strconv.FormatFloat(rec.MAP, 'g', -1, 64),
			strconv.FormatFloat(rec.DegradationFactor, 'g', -1, 64),
			strconv.FormatBool(rec.Knee),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush results table: %w", err)
	}
	return nil
}
