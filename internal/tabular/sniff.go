package tabular

import (
	"bytes"
	"net/url"
	"path"
	"strings"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// KindFromURL infers the document kind from a URL's file extension or a
// format query parameter. Ambiguous extensions (.xls, .txt) and URLs
// without one yield KindUnknown so the caller falls back to sniffing.
func KindFromURL(rawURL string) Kind {
	if rawURL == "" {
		return KindUnknown
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return KindUnknown
	}
	if k := kindFromExt(path.Ext(u.Path)); k != KindUnknown {
		return k
	}
	q := u.Query()
	for _, key := range []string{"format", "type", "output"} {
		if v := q.Get(key); v != "" {
			if k := kindFromExt("." + v); k != KindUnknown {
				return k
			}
		}
	}
	return KindUnknown
}

func kindFromExt(ext string) Kind {
	switch strings.ToLower(ext) {
	case ".csv", ".tsv":
		return KindCSV
	case ".xlsx", ".xlsm":
		return KindSpreadsheet
	case ".json":
		return KindJSON
	default:
		return KindUnknown
	}
}

// SheetFromURL returns the sheet named by a "#sheet=" URL fragment.
func SheetFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Fragment == "" {
		return ""
	}
	vals, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return ""
	}
	return vals.Get("sheet")
}

// Sniff identifies a document kind from its leading bytes. It never
// guesses: markup, binary and legacy spreadsheet content is rejected.
func Sniff(data []byte) (Kind, error) {
	head := bytes.TrimPrefix(data, utf8BOM)
	if bytes.HasPrefix(head, zipMagic) {
		return KindSpreadsheet, nil
	}
	if bytes.HasPrefix(head, oleMagic) {
		return KindUnknown, &UnsupportedFormatError{Reason: "legacy binary spreadsheet (.xls)"}
	}

	head = bytes.TrimLeft(head, " \t\r\n")
	if len(head) == 0 {
		return KindUnknown, &UnsupportedFormatError{Reason: "empty document"}
	}
	if len(head) > 4096 {
		head = head[:4096]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return KindUnknown, &UnsupportedFormatError{Reason: "binary content"}
	}
	switch head[0] {
	case '[', '{':
		return KindJSON, nil
	case '<':
		return KindUnknown, &UnsupportedFormatError{Reason: "markup document (HTML or XML)"}
	}
	return KindCSV, nil
}

func looksLikeHTML(data []byte) bool {
	head := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if len(head) > 256 {
		head = head[:256]
	}
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html"))
}
