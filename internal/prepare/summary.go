package prepare

import (
	"encoding/json"

	"github.com/sells-group/data-agent/internal/tabular"
)

type summaryDoc struct {
	Format         Format        `json:"format"`
	RowCount       int           `json:"row_count"`
	ColumnCount    int           `json:"column_count"`
	Columns        []ColumnStats `json:"columns"`
	ColumnsOmitted int           `json:"columns_omitted,omitempty"`
}

// summarize renders column statistics as JSON. When the full summary
// exceeds budget, trailing columns are dropped (largest fitting prefix by
// binary search) and the omission is reported in the document. Budgets too
// small for even the column-free document get an empty string.
func summarize(t *tabular.Table, budget int) string {
	stats := Describe(t)
	render := func(m int) string {
		doc := summaryDoc{
			Format:         FormatSummary,
			RowCount:       len(t.Rows),
			ColumnCount:    len(t.Columns),
			Columns:        stats[:m],
			ColumnsOmitted: len(stats) - m,
		}
		b, _ := json.Marshal(doc)
		return string(b)
	}

	full := render(len(stats))
	if len(full) <= budget {
		return full
	}

	if len(render(0)) > budget {
		return ""
	}

	lo, hi := 0, len(stats)
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if len(render(mid)) <= budget {
			lo = mid
		} else {
			hi = mid
		}
	}
	return render(lo)
}
