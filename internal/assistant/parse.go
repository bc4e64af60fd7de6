package assistant

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/data-agent/pkg/anthropic"
)

// URLStatus is the outcome of parsing a source identification reply.
type URLStatus int

const (
	// URLsParsed means at least one well-formed URL was found.
	URLsParsed URLStatus = iota
	// URLsNotFound means the reply held no URL-like text.
	URLsNotFound
	// URLsMalformed means the reply held URL-like text but nothing parsed.
	URLsMalformed
)

// URLParse is a parsed source identification reply.
type URLParse struct {
	Status URLStatus
	URLs   []string
}

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?|ftp)://[^\s<>"'` + "`" + `]*`)

// trailingPunct is stripped from the end of a matched URL.
const trailingPunct = ".,;:!?*'\"]}>"

var dataExtensions = []string{".csv", ".tsv", ".xlsx", ".xlsm", ".json"}

// ParseURLs extracts every well-formed absolute http, https or ftp URL from
// text in order of appearance, trims trailing punctuation and drops
// duplicates.
func ParseURLs(text string) URLParse {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return URLParse{Status: URLsNotFound}
	}

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		u := trimURL(m)
		if !wellFormed(u) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	if len(out) == 0 {
		return URLParse{Status: URLsMalformed}
	}
	return URLParse{Status: URLsParsed, URLs: out}
}

// RankCandidates moves URLs that name a decodable data file ahead of the
// rest and legacy .xls workbooks, which cannot be decoded, to the back. The
// Assistant's order is kept within each group.
func RankCandidates(urls []string) []string {
	ranked := append([]string(nil), urls...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return candidateRank(ranked[i]) < candidateRank(ranked[j])
	})
	return ranked
}

func candidateRank(raw string) int {
	switch {
	case looksLikeDataFile(raw):
		return 0
	case isLegacyWorkbook(raw):
		return 2
	default:
		return 1
	}
}

func isLegacyWorkbook(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".xls")
}

func looksLikeDataFile(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range dataExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	q := u.Query()
	for _, key := range []string{"format", "type", "output"} {
		switch strings.ToLower(q.Get(key)) {
		case "csv", "tsv", "xlsx", "json":
			return true
		}
	}
	return false
}

func trimURL(s string) string {
	for {
		trimmed := strings.TrimRight(s, trailingPunct)
		// Drop a closing paren only when it has no opening partner, so
		// markdown links lose it but wiki-style paths keep theirs.
		if strings.HasSuffix(trimmed, ")") && strings.Count(trimmed, ")") > strings.Count(trimmed, "(") {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func wellFormed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
	default:
		return false
	}
	host := u.Hostname()
	if host == "" || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}
	return strings.Contains(host, ".") || host == "localhost" || strings.Contains(u.Host, ":")
}

// ToolStatus is the outcome of a code execution analysis reply.
type ToolStatus int

const (
	// ToolExecuted means at least one code execution succeeded.
	ToolExecuted ToolStatus = iota
	// ToolNotInvoked means the model answered without running code.
	ToolNotInvoked
	// ToolFailed means the model ran code and every execution failed.
	ToolFailed
)

func (s ToolStatus) String() string {
	switch s {
	case ToolExecuted:
		return "executed"
	case ToolNotInvoked:
		return "not_invoked"
	case ToolFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ToolParse is a parsed code execution analysis reply.
type ToolParse struct {
	Status ToolStatus
	// Output is the stdout of the successful executions, in order.
	Output string
	// Answer is the model's prose around the executions.
	Answer string
	// LastFailure is the last failed execution, if any.
	LastFailure *anthropic.ExecutionResult
}

// ParseToolReply classifies a code execution reply.
func ParseToolReply(resp *anthropic.MessageResponse) ToolParse {
	p := ToolParse{Answer: strings.TrimSpace(resp.Text())}

	runs := resp.Executions()
	if len(runs) == 0 {
		p.Status = ToolNotInvoked
		return p
	}

	var outputs []string
	succeeded := 0
	for i := range runs {
		r := runs[i]
		if r.Failed() {
			p.LastFailure = &r
			continue
		}
		succeeded++
		if out := strings.TrimSpace(r.Stdout); out != "" {
			outputs = append(outputs, out)
		}
	}
	if succeeded == 0 {
		p.Status = ToolFailed
		return p
	}
	p.Status = ToolExecuted
	p.Output = strings.Join(outputs, "\n")
	return p
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
