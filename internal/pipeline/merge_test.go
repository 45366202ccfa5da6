package pipeline

import (
	"testing"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMerge_OrdersByPageAndDedupesEntities(t *testing.T) {
	pages := []models.Page{
		{Index: 1, Status: models.PageOK},
		{Index: 2, Status: models.PageFailed},
		{Index: 3, Status: models.PagePartial},
		{Index: 4, Status: models.PageOK},
	}
	partials := []models.PartialSummary{
		{ChunkIndex: 1, Pages: models.PageRange{First: 3, Last: 4}, Status: models.ChunkOK, Summary: "B", Entities: []string{"Beta Ltd", " ACME corp "}},
		{ChunkIndex: 0, Pages: models.PageRange{First: 1, Last: 2}, Status: models.ChunkOK, Summary: "A", Entities: []string{"Acme Corp", ""}},
	}

	final := Merge("doc", pages, partials)
	assert.Equal(t, models.StatusComplete, final.Status)
	assert.Equal(t, "A", final.Findings[0].Summary)
	assert.Equal(t, "B", final.Findings[1].Summary)
	assert.Equal(t, []string{"Acme Corp", "Beta Ltd"}, final.Entities)
	assert.Equal(t, []models.PageRange{{First: 1, Last: 4}}, final.Covered)
	assert.Equal(t, []int{3}, final.PartialPages)
	assert.Equal(t, []int{2}, final.FailedPages)
}

func TestMerge_Statuses(t *testing.T) {
	ok := models.PartialSummary{Pages: models.PageRange{First: 1, Last: 1}, Status: models.ChunkOK, Summary: "s"}
	bad := models.PartialSummary{Pages: models.PageRange{First: 2, Last: 2}, Status: models.ChunkFailed, Detail: "rejected: blocked"}

	assert.Equal(t, models.StatusPartial, Merge("d", nil, []models.PartialSummary{ok, bad}).Status)

	final := Merge("d", nil, []models.PartialSummary{bad})
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, []models.FailedRange{{Pages: bad.Pages, Reason: "rejected: blocked"}}, final.FailedRanges)
	assert.NotNil(t, final.Findings)
	assert.NotNil(t, final.Covered)

	assert.Equal(t, models.StatusFailed, Merge("d", nil, nil).Status)
}
