package prepare

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/data-agent/internal/tabular"
)

// DefaultPreviewRows is the number of leading rows shown by Preview.
const DefaultPreviewRows = 5

// Preview renders a short plain-text description of a table: shape,
// column types, leading rows, numeric statistics and missing-value counts.
func Preview(t *tabular.Table, rows int) string {
	if rows <= 0 {
		rows = DefaultPreviewRows
	}
	if rows > len(t.Rows) {
		rows = len(t.Rows)
	}
	stats := Describe(t)

	var b strings.Builder
	fmt.Fprintf(&b, "Shape: %d rows x %d columns\n", len(t.Rows), len(t.Columns))

	b.WriteString("\nColumns:\n")
	for _, st := range stats {
		fmt.Fprintf(&b, "  - %s (%s)\n", st.Name, st.Type)
	}

	fmt.Fprintf(&b, "\nFirst %d rows:\n", rows)
	enc := newEncoder(&tabular.Table{Columns: t.Columns, Rows: t.Rows[:rows]})
	b.WriteString(enc.render(rows))

	var numeric []ColumnStats
	for _, st := range stats {
		if st.Mean != nil {
			numeric = append(numeric, st)
		}
	}
	if len(numeric) > 0 {
		b.WriteString("\nNumeric statistics:\n")
		for _, st := range numeric {
			fmt.Fprintf(&b, "  %s: min=%s max=%s mean=%s\n", st.Name, num(*st.Min), num(*st.Max), num(*st.Mean))
		}
	}

	b.WriteString("\nMissing values:\n")
	var anyMissing bool
	for _, st := range stats {
		if st.Missing > 0 {
			anyMissing = true
			fmt.Fprintf(&b, "  %s: %d\n", st.Name, st.Missing)
		}
	}
	if !anyMissing {
		b.WriteString("  none\n")
	}
	return b.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
