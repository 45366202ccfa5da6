package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
)

// SystemPrompt is sent as the system instruction to every summary model.
const SystemPrompt = "You are an expert document analyst. You receive the OCR text and a visual caption for consecutive pages of a scanned report. Write a concise, factual summary grounded only in the provided content. Do not speculate or invent details that are not present."

// responseContract is appended to every user prompt so that all backends
// return the same JSON shape.
const responseContract = `Respond with a single JSON object and nothing else, using exactly these keys:
{
  "summary": "factual summary of these pages",
  "keyFacts": ["short factual statement", "..."],
  "entities": ["person, organization, place, product or identifier", "..."],
  "digest": "updated running digest of the whole document so far, at most %d sentences"
}`

// Prompt is everything the model needs to summarize one chunk.
type Prompt struct {
	ChunkIndex         int
	Pages              models.PageRange
	Body               string
	Digest             string
	DigestMaxSentences int
	Oversized          bool
}

// Draft is the model's structured answer for one chunk.
type Draft struct {
	Summary  string   `json:"summary"`
	KeyFacts []string `json:"keyFacts"`
	Entities []string `json:"entities"`
	Digest   string   `json:"digest"`
}

// UserPrompt renders the user turn for p.
func UserPrompt(p Prompt) string {
	var b strings.Builder
	if p.Digest != "" {
		fmt.Fprintf(&b, "Running digest of earlier pages:\n%s\n\n", p.Digest)
	} else {
		b.WriteString("This is the beginning of the document.\n\n")
	}
	fmt.Fprintf(&b, "Summarize %s of the document.\n", p.Pages)
	if p.Oversized {
		b.WriteString("This page is unusually long; prioritize its most important facts.\n")
	}
	b.WriteString("\n")
	b.WriteString(p.Body)
	b.WriteString("\n\n")
	limit := p.DigestMaxSentences
	if limit <= 0 {
		limit = 8
	}
	fmt.Fprintf(&b, responseContract, limit)
	return b.String()
}

// ParseDraft decodes a model response into a Draft. Markdown code fences
// around the JSON are tolerated. Undecodable responses are transient.
func ParseDraft(raw string) (Draft, error) {
	content := extractJSON(raw)
	if content == "" {
		return Draft{}, models.NewError(models.KindSummarizationTransient, "model returned an empty response", nil)
	}

	var d Draft
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return Draft{}, models.NewError(models.KindSummarizationTransient, "model response is not valid JSON", err)
	}
	d.Summary = strings.TrimSpace(d.Summary)
	d.Digest = strings.TrimSpace(d.Digest)
	if d.Summary == "" {
		return Draft{}, models.NewError(models.KindSummarizationTransient, "model response has an empty summary", nil)
	}
	return d, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// DecodeResponse turns a raw model answer into a Draft. The refusal check
// only applies to answers that are not a usable Draft, since a valid summary
// may quote refusal-like wording from the document.
func DecodeResponse(raw string, pages models.PageRange) (Draft, error) {
	d, err := ParseDraft(raw)
	if err == nil {
		return d, nil
	}
	if IsRefusal(raw) {
		return Draft{}, models.NewError(models.KindSummarizationRejected,
			fmt.Sprintf("model response indicates refusal for %s", pages), nil)
	}
	return Draft{}, err
}

// IsRefusal reports whether text reads like a model refusal.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
