package prepare

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/sells-group/data-agent/internal/tabular"
)

// DistinctCap bounds the exact distinct-value count kept per column. Columns
// with more values report the cap and DistinctCapped.
const DistinctCap = 10000

// ColumnStats describes one column.
type ColumnStats struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Count          int      `json:"count"`
	NonNull        int      `json:"non_null"`
	Missing        int      `json:"missing"`
	Distinct       int      `json:"distinct"`
	DistinctCapped bool     `json:"distinct_capped,omitempty"`
	Min            *float64 `json:"min,omitempty"`
	Max            *float64 `json:"max,omitempty"`
	Mean           *float64 `json:"mean,omitempty"`
}

// Describe computes per-column statistics in column order.
func Describe(t *tabular.Table) []ColumnStats {
	out := make([]ColumnStats, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = describeColumn(t, c)
	}
	return out
}

func describeColumn(t *tabular.Table, col string) ColumnStats {
	st := ColumnStats{Name: col, Count: len(t.Rows)}
	distinct := make(map[string]struct{})
	kinds := make(map[string]bool)
	var sum float64
	var numeric int
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, r := range t.Rows {
		v := r[col]
		if v == nil {
			st.Missing++
			continue
		}
		st.NonNull++
		kinds[kindOf(v)] = true

		if len(distinct) < DistinctCap {
			distinct[distinctKey(v)] = struct{}{}
		} else if _, seen := distinct[distinctKey(v)]; !seen {
			st.DistinctCapped = true
		}

		if f, ok := v.(float64); ok {
			numeric++
			sum += f
			lo = math.Min(lo, f)
			hi = math.Max(hi, f)
		}
	}

	st.Distinct = len(distinct)
	st.Type = typeName(kinds)
	if numeric > 0 {
		mean := sum / float64(numeric)
		st.Min, st.Max, st.Mean = &lo, &hi, &mean
	}
	return st
}

func kindOf(v any) string {
	switch v.(type) {
	case float64:
		return "number"
	case bool:
		return "boolean"
	case json.RawMessage:
		return "nested"
	default:
		return "string"
	}
}

func typeName(kinds map[string]bool) string {
	switch len(kinds) {
	case 0:
		return "empty"
	case 1:
		for k := range kinds {
			return k
		}
	}
	return "mixed"
}

func distinctKey(v any) string {
	switch x := v.(type) {
	case float64:
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(x)
	case json.RawMessage:
		return "j:" + string(x)
	case string:
		return "s:" + x
	default:
		return "?"
	}
}
