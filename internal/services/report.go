package services

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
)

const findingSeparator = "\n\n---\n\n"

// RenderReport formats a FinalSummary as a Markdown document. Findings
// appear in page order, separated by horizontal rules.
func RenderReport(title string, s *models.FinalSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Status:** %s  \n**Pages:** %d\n", s.Status, s.PageCount)
	if s.Truncated {
		fmt.Fprintf(&b, "\n> Only the first %d of %d pages were processed.\n", s.PageCount, s.OriginalPageCount)
	}

	if len(s.Findings) > 0 {
		b.WriteString("\n## Findings\n\n")
		sections := make([]string, 0, len(s.Findings))
		for _, f := range s.Findings {
			var sec strings.Builder
			fmt.Fprintf(&sec, "### %s\n\n%s", capitalize(f.Pages.String()), f.Summary)
			if len(f.KeyFacts) > 0 {
				sec.WriteString("\n")
				for _, fact := range f.KeyFacts {
					fmt.Fprintf(&sec, "\n- %s", fact)
				}
			}
			sections = append(sections, sec.String())
		}
		b.WriteString(strings.Join(sections, findingSeparator))
		b.WriteString("\n")
	}

	if len(s.Entities) > 0 {
		b.WriteString("\n## Entities\n\n")
		for _, e := range s.Entities {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	if len(s.FailedRanges) > 0 || len(s.FailedPages) > 0 || len(s.PartialPages) > 0 {
		b.WriteString("\n## Not summarized\n\n")
		for _, fr := range s.FailedRanges {
			fmt.Fprintf(&b, "- %s: %s\n", capitalize(fr.Pages.String()), fr.Reason)
		}
		if len(s.FailedPages) > 0 {
			fmt.Fprintf(&b, "- Pages with no extracted content: %s\n", joinInts(s.FailedPages))
		}
		if len(s.PartialPages) > 0 {
			fmt.Fprintf(&b, "- Partially extracted pages: %s\n", joinInts(s.PartialPages))
		}
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
