// Package prepare sizes a decoded table for the remote code-execution tool:
// full serialization when it fits the byte budget, the longest fitting row
// prefix when it does not, and a column summary as a last resort.
package prepare

import (
	"github.com/sells-group/data-agent/internal/tabular"
)

// Format tags the serialization carried by a Payload.
type Format string

// Payload formats.
const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// Payload is a serialized table ready to attach to an analysis request.
type Payload struct {
	Format           Format `json:"format"`
	Content          string `json:"-"`
	Truncated        bool   `json:"truncated"`
	OriginalRowCount int    `json:"original_row_count"`
	IncludedRowCount int    `json:"included_row_count"`
}

// MinBudget is the smallest budget that always fits a column-free summary.
const MinBudget = 256

// Size returns the serialized size in bytes.
func (p Payload) Size() int { return len(p.Content) }

// Prepare serializes t within budget bytes. CSV is used unless the table
// holds nested values, in which case JSON is used. A non-positive budget
// disables the limit. Below MinBudget the summary may not fit at all, and
// the payload comes back empty.
func Prepare(t *tabular.Table, budget int) Payload {
	enc := newEncoder(t)
	n := len(t.Rows)

	if budget <= 0 || enc.size(n) <= budget {
		return Payload{
			Format:           enc.format,
			Content:          enc.render(n),
			OriginalRowCount: n,
			IncludedRowCount: n,
		}
	}

	if n == 0 || enc.size(1) > budget {
		return Payload{
			Format:           FormatSummary,
			Content:          summarize(t, budget),
			Truncated:        n > 0,
			OriginalRowCount: n,
		}
	}

	k := maxFittingRows(enc, n, budget)
	return Payload{
		Format:           enc.format,
		Content:          enc.render(k),
		Truncated:        true,
		OriginalRowCount: n,
		IncludedRowCount: k,
	}
}

// maxFittingRows returns the largest k in [1, n) with size(k) <= budget,
// given size(1) fits and size(n) does not. It gallops to bracket k, then
// binary searches, so only rows up to twice the answer are ever encoded.
func maxFittingRows(enc *encoder, n, budget int) int {
	lo, hi := 1, 2
	for hi < n && enc.size(hi) <= budget {
		lo = hi
		hi *= 2
	}
	if hi > n {
		hi = n
	}
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if enc.size(mid) <= budget {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
