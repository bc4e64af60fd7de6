package tabular

import (
	"bytes"
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

var candidateDelimiters = []rune{',', ';', '\t', '|'}

func decodeCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrap(malformed(KindCSV, "undecodable text encoding"), "tabular: csv")
		}
		data = decoded
	}
	if looksLikeHTML(data) {
		return nil, malformed(KindCSV, "document is an HTML page")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed(KindCSV, "empty document")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, malformed(KindCSV, "%v", err)
	}

	var header []string
	body := make([][]string, 0, len(records))
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		body = append(body, rec)
	}
	if header == nil {
		return nil, malformed(KindCSV, "no header row")
	}
	return fromRecords(header, body), nil
}

// sniffDelimiter picks the candidate delimiter that splits the first lines
// into the most fields with a consistent count. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	sample := string(data)
	if len(sample) > 16*1024 {
		sample = sample[:16*1024]
	}
	lines := strings.Split(sample, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}
	if len(lines) > 1 && len(data) > len(sample) {
		lines = lines[:len(lines)-1]
	}

	best, bestScore := ',', 0
	for _, d := range candidateDelimiters {
		score := delimiterScore(lines, d)
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func delimiterScore(lines []string, d rune) int {
	first := -1
	consistent := 0
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := strings.Count(line, string(d))
		if n == 0 {
			return 0
		}
		if first < 0 {
			first = n
		}
		if n == first {
			consistent++
		}
	}
	if first <= 0 {
		return 0
	}
	return consistent * first
}
