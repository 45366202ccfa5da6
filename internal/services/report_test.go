package services

import (
	"strings"
	"testing"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRenderReport(t *testing.T) {
	s := &models.FinalSummary{
		Status:            models.StatusPartial,
		PageCount:         5,
		OriginalPageCount: 9,
		Truncated:         true,
		Findings: []models.Finding{
			{Pages: models.PageRange{First: 1, Last: 2}, Summary: "Scope of the audit.", KeyFacts: []string{"FY2023"}},
			{Pages: models.PageRange{First: 5, Last: 5}, Summary: "Conclusions."},
		},
		Entities:     []string{"Acme Corp"},
		FailedRanges: []models.FailedRange{{Pages: models.PageRange{First: 3, Last: 4}, Reason: "rejected: blocked"}},
		PartialPages: []int{2},
	}

	out := RenderReport("report.pdf", s)
	assert.True(t, strings.HasPrefix(out, "# report.pdf\n\n**Status:** partial"))
	assert.Contains(t, out, "Only the first 5 of 9 pages were processed.")
	assert.Contains(t, out, "### Pages 1-2\n\nScope of the audit.\n\n- FY2023\n\n---\n\n### Page 5\n\nConclusions.")
	assert.Contains(t, out, "## Entities\n\n- Acme Corp\n")
	assert.Contains(t, out, "## Not summarized\n\n- Pages 3-4: rejected: blocked\n")
	assert.Contains(t, out, "- Partially extracted pages: 2\n")
	assert.Less(t, strings.Index(out, "Pages 1-2"), strings.Index(out, "Page 5"))
}

func TestRenderReport_Complete(t *testing.T) {
	out := RenderReport("scan.png", &models.FinalSummary{
		Status:    models.StatusComplete,
		PageCount: 1,
		Findings:  []models.Finding{{Pages: models.PageRange{First: 1, Last: 1}, Summary: "A receipt."}},
	})
	assert.NotContains(t, out, "Not summarized")
	assert.NotContains(t, out, "---")
	assert.NotContains(t, out, "Only the first")
}
