package pipeline

import (
	"sort"
	"strings"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
)

// Merge assembles the FinalSummary from the per-chunk results. Findings and
// failed ranges follow page order, entities are deduplicated keeping the
// first spelling seen, and extraction problems are listed per page.
func Merge(documentID string, pages []models.Page, partials []models.PartialSummary) *models.FinalSummary {
	sorted := make([]models.PartialSummary, len(partials))
	copy(sorted, partials)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pages.First < sorted[j].Pages.First
	})

	final := &models.FinalSummary{
		DocumentID:   documentID,
		PageCount:    len(pages),
		Findings:     []models.Finding{},
		Entities:     []string{},
		Covered:      []models.PageRange{},
		FailedRanges: []models.FailedRange{},
	}

	seen := make(map[string]bool)
	succeeded := 0
	for _, p := range sorted {
		if p.Status != models.ChunkOK {
			final.FailedRanges = append(final.FailedRanges, models.FailedRange{Pages: p.Pages, Reason: p.Detail})
			continue
		}
		succeeded++
		final.Findings = append(final.Findings, models.Finding{
			Pages:    p.Pages,
			Summary:  p.Summary,
			KeyFacts: p.KeyFacts,
		})
		final.Covered = appendRange(final.Covered, p.Pages)
		for _, e := range p.Entities {
			key := entityKey(e)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			final.Entities = append(final.Entities, strings.TrimSpace(e))
		}
	}

	for _, pg := range pages {
		switch pg.Status {
		case models.PagePartial:
			final.PartialPages = append(final.PartialPages, pg.Index)
		case models.PageFailed:
			final.FailedPages = append(final.FailedPages, pg.Index)
		}
	}

	switch {
	case len(sorted) > 0 && succeeded == len(sorted):
		final.Status = models.StatusComplete
	case succeeded > 0:
		final.Status = models.StatusPartial
	default:
		final.Status = models.StatusFailed
	}
	return final
}

// appendRange adds r to ranges, joining it with the last range when adjacent.
func appendRange(ranges []models.PageRange, r models.PageRange) []models.PageRange {
	if n := len(ranges); n > 0 && ranges[n-1].Last+1 == r.First {
		ranges[n-1].Last = r.Last
		return ranges
	}
	return append(ranges, r)
}

func entityKey(e string) string {
	return strings.ToLower(strings.Join(strings.Fields(e), " "))
}
