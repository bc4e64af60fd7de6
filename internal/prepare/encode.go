package prepare

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"github.com/sells-group/data-agent/internal/tabular"
)

// encoder serializes row prefixes of a table. Encoded rows are cached along
// with a running byte total, so repeated size probes only encode new rows.
type encoder struct {
	format Format
	table  *tabular.Table
	prefix []byte
	suffix []byte
	sep    []byte
	encode func(tabular.Row) []byte

	rows [][]byte
	cum  []int // cum[i] is the byte total of rows[0:i]
}

func newEncoder(t *tabular.Table) *encoder {
	e := &encoder{table: t, cum: []int{0}}
	if t.Nested() {
		e.format = FormatJSON
		e.prefix = []byte("[")
		e.suffix = []byte("]")
		e.sep = []byte(",")
		e.encode = func(r tabular.Row) []byte { return jsonRow(t.Columns, r) }
	} else {
		e.format = FormatCSV
		e.prefix = csvLine(t.Columns)
		e.encode = func(r tabular.Row) []byte {
			fields := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				fields[i] = cellText(r[c])
			}
			return csvLine(fields)
		}
	}
	return e
}

func (e *encoder) grow(k int) {
	for len(e.rows) < k {
		b := e.encode(e.table.Rows[len(e.rows)])
		e.rows = append(e.rows, b)
		e.cum = append(e.cum, e.cum[len(e.cum)-1]+len(b))
	}
}

// size returns the byte length of render(k).
func (e *encoder) size(k int) int {
	e.grow(k)
	n := len(e.prefix) + len(e.suffix) + e.cum[k]
	if k > 1 {
		n += (k - 1) * len(e.sep)
	}
	return n
}

func (e *encoder) render(k int) string {
	e.grow(k)
	var buf bytes.Buffer
	buf.Grow(e.size(k))
	buf.Write(e.prefix)
	for i := 0; i < k; i++ {
		if i > 0 {
			buf.Write(e.sep)
		}
		buf.Write(e.rows[i])
	}
	buf.Write(e.suffix)
	return buf.String()
}

func csvLine(fields []string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(fields)
	w.Flush()
	return buf.Bytes()
}

// jsonRow encodes a row as an object whose keys follow column order.
func jsonRow(cols []string, r tabular.Row) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(c)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(jsonValue(r[c]))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func jsonValue(v any) []byte {
	switch x := v.(type) {
	case nil:
		return []byte("null")
	case json.RawMessage:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return []byte("null")
		}
		return b
	}
}

// cellText renders a cell for CSV output.
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.RawMessage:
		return string(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
