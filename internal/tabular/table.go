// Package tabular decodes downloaded data files (CSV, XLSX, JSON) into a
// uniform column/row table.
package tabular

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind identifies the format of a data document.
type Kind string

// Supported document kinds.
const (
	KindUnknown     Kind = ""
	KindCSV         Kind = "csv"
	KindSpreadsheet Kind = "spreadsheet"
	KindJSON        Kind = "json"
)

// Row maps column name to a cell value. Cells are nil, string, float64, bool
// or json.RawMessage (nested JSON values).
type Row map[string]any

// Table is an ordered set of unique columns and the rows that hold them.
// Every row carries every column; missing cells are nil.
type Table struct {
	Columns []string
	Rows    []Row
}

// Nested reports whether any cell holds a nested JSON value.
func (t *Table) Nested() bool {
	for _, r := range t.Rows {
		for _, v := range r {
			if _, ok := v.(json.RawMessage); ok {
				return true
			}
		}
	}
	return false
}

// Options controls decoding.
type Options struct {
	// Kind forces the document kind. When empty it is inferred from
	// SourceURL, then from the content itself.
	Kind Kind
	// Sheet selects a spreadsheet sheet by name. Defaults to the first sheet
	// or to a "#sheet=" fragment on SourceURL.
	Sheet string
	// SourceURL is where the bytes came from.
	SourceURL string
}

// UnsupportedFormatError is returned for documents whose kind cannot be
// decoded or identified.
type UnsupportedFormatError struct {
	Kind   Kind
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Kind != KindUnknown {
		return fmt.Sprintf("unsupported format %q: %s", e.Kind, e.Reason)
	}
	return "unsupported format: " + e.Reason
}

// MalformedDataError is returned when a document of a known kind cannot be
// turned into a table.
type MalformedDataError struct {
	Kind   Kind
	Reason string
}

func (e *MalformedDataError) Error() string {
	if e.Kind == KindUnknown {
		return "malformed data: " + e.Reason
	}
	return fmt.Sprintf("malformed %s data: %s", e.Kind, e.Reason)
}

func malformed(kind Kind, format string, args ...any) error {
	return &MalformedDataError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Decode turns raw document bytes into a Table. Decoding is deterministic:
// the same bytes and options always produce an equal table.
func Decode(data []byte, opts Options) (*Table, error) {
	kind := opts.Kind
	if kind == KindUnknown {
		kind = KindFromURL(opts.SourceURL)
	}
	if kind == KindUnknown {
		sniffed, err := Sniff(data)
		if err != nil {
			return nil, err
		}
		kind = sniffed
	}

	switch kind {
	case KindCSV:
		return decodeCSV(data)
	case KindSpreadsheet:
		sheet := opts.Sheet
		if sheet == "" {
			sheet = SheetFromURL(opts.SourceURL)
		}
		return decodeSpreadsheet(data, sheet)
	case KindJSON:
		return decodeJSON(data)
	default:
		return nil, eris.Wrap(&UnsupportedFormatError{Kind: kind, Reason: "no decoder for kind"}, "tabular: decode")
	}
}

// columnNamer hands out unique, non-empty column names.
type columnNamer struct {
	seen map[string]bool
	n    int
}

func newColumnNamer() *columnNamer {
	return &columnNamer{seen: make(map[string]bool)}
}

func (c *columnNamer) next(raw string) string {
	c.n++
	name := strings.TrimSpace(raw)
	if name == "" {
		name = fmt.Sprintf("column_%d", c.n)
	}
	if !c.seen[name] {
		c.seen[name] = true
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !c.seen[candidate] {
			c.seen[candidate] = true
			return candidate
		}
	}
}

// fromRecords builds a table from a header record and value records,
// padding short rows and naming columns for extra cells.
func fromRecords(header []string, records [][]string) *Table {
	namer := newColumnNamer()
	cols := make([]string, 0, len(header))
	for _, h := range header {
		cols = append(cols, namer.next(h))
	}
	for _, rec := range records {
		for len(cols) < len(rec) {
			cols = append(cols, namer.next(""))
		}
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := make(Row, len(cols))
		for i, col := range cols {
			if i < len(rec) {
				row[col] = coerceCell(rec[i])
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return &Table{Columns: cols, Rows: rows}
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
