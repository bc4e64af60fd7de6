package pipeline

import (
	"fmt"
	"strings"
)

// excerptLen caps prose carried from earlier stages into a partial answer.
const excerptLen = 600

func noUsableCandidateMessage(tried int) string {
	if tried == 1 {
		return "the only candidate source could not be used"
	}
	return fmt.Sprintf("none of the %d candidate sources could be used", tried)
}

// partialAnswer explains an aborted run: what was asked, how far it got,
// what was learned on the way and what went wrong. It is never empty.
func partialAnswer(st *runState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "I could not fully answer %q.\n", st.query)
	fmt.Fprintf(&b, "The run stopped after the %s stage.\n", humanStage(string(st.last)))

	if st.strategy != "" {
		b.WriteString("\nSearch strategy:\n")
		b.WriteString(excerpt(st.strategy))
		b.WriteString("\n")
	}

	if st.candidatesTried > 0 {
		fmt.Fprintf(&b, "\nCandidate sources tried: %d of %d found.\n", st.candidatesTried, len(st.candidates))
		for i := 0; i < st.candidatesTried && i < len(st.candidates); i++ {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, st.candidates[i])
		}
	}

	if st.table != nil {
		fmt.Fprintf(&b, "\nData loaded from %s: %d rows, %d columns.\n",
			st.candidateURL, len(st.table.Rows), len(st.table.Columns))
	}

	if st.analysis != "" {
		b.WriteString("\nPlanned analysis:\n")
		b.WriteString(excerpt(st.analysis))
		b.WriteString("\n")
	}

	if st.tool != nil {
		if text := st.tool.Text(); text != "" {
			b.WriteString("\nAnalysis output:\n")
			b.WriteString(excerpt(text))
			b.WriteString("\n")
		}
	}

	if len(st.errors) > 0 {
		b.WriteString("\nProblems:\n")
		for _, e := range st.errors {
			b.WriteString("  - ")
			b.WriteString(e.String())
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func humanStage(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "..."
}
