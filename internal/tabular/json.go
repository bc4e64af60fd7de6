package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
)

func decodeJSON(data []byte) (*Table, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, malformed(KindJSON, "empty document")
	}
	if !json.Valid(data) {
		return nil, malformed(KindJSON, "invalid JSON")
	}

	switch data[0] {
	case '[':
		return decodeRowArray(data)
	case '{':
		rows, err := findRowArray(data)
		if err != nil {
			return nil, err
		}
		return decodeRowArray(rows)
	default:
		return nil, malformed(KindJSON, "top-level value is not an array or object")
	}
}

// findRowArray returns the single field of a top-level object that holds an
// array of row objects.
func findRowArray(data []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, malformed(KindJSON, "%v", err)
	}

	var found json.RawMessage
	var matches int
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, malformed(KindJSON, "%v", err)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, malformed(KindJSON, "%v", err)
		}
		if isRowArray(raw) {
			found = raw
			matches++
		}
	}

	switch matches {
	case 0:
		return nil, malformed(KindJSON, "object has no array-of-objects field")
	case 1:
		return found, nil
	default:
		return nil, malformed(KindJSON, "object has %d array-of-objects fields", matches)
	}
}

func isRowArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || len(elems) == 0 {
		return false
	}
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '{' {
			return false
		}
	}
	return true
}

// decodeRowArray walks an array of objects token by token so column order
// follows the order in which keys first appear.
func decodeRowArray(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, malformed(KindJSON, "%v", err)
	}

	namer := newColumnNamer()
	keyToCol := make(map[string]string)
	var cols []string
	var rows []Row

	for i := 0; dec.More(); i++ {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(KindJSON, "%v", err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, malformed(KindJSON, "row %d is not an object", i)
		}

		row := make(Row)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, malformed(KindJSON, "%v", err)
			}
			key, _ := keyTok.(string)
			col, ok := keyToCol[key]
			if !ok {
				col = namer.next(key)
				keyToCol[key] = col
				cols = append(cols, col)
			}

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, malformed(KindJSON, "%v", err)
			}
			v, err := jsonCell(raw)
			if err != nil {
				return nil, malformed(KindJSON, "row %d field %q: %v", i, key, err)
			}
			row[col] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, malformed(KindJSON, "%v", err)
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, malformed(KindJSON, "%v", err)
	}

	for _, row := range rows {
		for _, col := range cols {
			if _, ok := row[col]; !ok {
				row[col] = nil
			}
		}
	}
	if rows == nil {
		rows = []Row{}
	}
	return &Table{Columns: cols, Rows: rows}, nil
}

func jsonCell(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case 'n':
		return nil, nil
	case 't':
		return true, nil
	case 'f':
		return false, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return json.RawMessage(buf.Bytes()), nil
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}
