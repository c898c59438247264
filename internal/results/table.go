package results

import (
	"math"

	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// Record is one evaluation row: the measured metric for a single object
// class at a single effective resolution.
type Record struct {
	ObjectName        string          `json:"object_name"`
	Original          resolution.Pair `json:"original_resolution"`
	Effective         resolution.Pair `json:"effective_resolution"`
	MAP               float64         `json:"mAP"`
	DegradationFactor float64         `json:"degradation_factor"`
	Knee              bool            `json:"knee"`
}

// Table is an ordered collection of evaluation records for one pipeline run.
// Rows are unique per (object name, effective resolution); re-evaluating a
// resolution updates the existing row. The degradation factor on every row is
// derived from the resolutions, never trusted from storage.
type Table struct {
	records []Record
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns a copy of all rows in insertion order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Upsert inserts a row, or updates the existing row with the same object name
// and effective resolution. The degradation factor is recomputed from the
// resolutions in either case.
func (t *Table) Upsert(rec Record) {
	rec.DegradationFactor = resolution.Factor(rec.Original, rec.Effective)
	for i := range t.records {
		if t.records[i].ObjectName == rec.ObjectName && t.records[i].Effective == rec.Effective {
			t.records[i] = rec
			return
		}
	}
	t.records = append(t.records, rec)
}

// Classes returns the distinct object names in first-appearance order.
func (t *Table) Classes() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range t.records {
		if !seen[r.ObjectName] {
			seen[r.ObjectName] = true
			names = append(names, r.ObjectName)
		}
	}
	return names
}

// Class returns copies of all rows for one object name, in insertion order.
func (t *Table) Class(name string) []Record {
	var out []Record
	for _, r := range t.records {
		if r.ObjectName == name {
			out = append(out, r)
		}
	}
	return out
}

// ClearKnees removes the knee flag from every row of the given class.
func (t *Table) ClearKnees(class string) {
	for i := range t.records {
		if t.records[i].ObjectName == class {
			t.records[i].Knee = false
		}
	}
}

// MarkKnee clears all knee flags for the class, then flags the first row
// whose degradation factor is within tol of factor. At most one row per
// class ever carries the flag. Returns false if the factor matched no row
// and nothing was changed beyond the clear.
func (t *Table) MarkKnee(class string, factor, tol float64) bool {
	t.ClearKnees(class)
	for i := range t.records {
		if t.records[i].ObjectName != class {
			continue
		}
		if math.Abs(t.records[i].DegradationFactor-factor) <= tol {
			t.records[i].Knee = true
			return true
		}
	}
	return false
}
