package extractor

import (
	"encoding/json"
	"strings"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
)

const OCRSystemPrompt = "You are an OCR engine. Transcribe every line of text visible on the page image exactly as printed, in reading order. Do not summarize, translate or correct the text."

const OCRUserPrompt = `Transcribe the text on this page image.
Respond with a single JSON object and nothing else:
{"text": "all lines of text separated by newlines, or an empty string if the page has no text", "confidence": 0.0}
confidence is your estimate between 0 and 1 that the transcription is accurate.`

const CaptionSystemPrompt = "You describe the visual content of scanned document pages: charts, tables, diagrams, photos and layout. Describe only what is visible."

const CaptionUserPrompt = `Write a one or two sentence caption describing the visual content of this page image.
Respond with a single JSON object and nothing else:
{"text": "the caption", "confidence": 0.0}
confidence is your estimate between 0 and 1 that the caption is accurate.`

type recognitionJSON struct {
	Text       string  `json:"text"`
	Caption    string  `json:"caption"`
	Confidence float64 `json:"confidence"`
}

// ParseRecognition decodes an OCR or caption model response. Code fences
// are tolerated and confidence is clamped to [0, 1]. An undecodable response
// is ExtractionTransient.
func ParseRecognition(raw string) (Recognition, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start != -1 && end > start {
		s = s[start : end+1]
	}
	if s == "" {
		return Recognition{}, models.NewError(models.KindExtractionTransient, "model returned an empty response", nil)
	}

	var r recognitionJSON
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return Recognition{}, models.NewError(models.KindExtractionTransient, "model response is not valid JSON", err)
	}
	text := r.Text
	if text == "" {
		text = r.Caption
	}
	conf := r.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return Recognition{Text: strings.TrimSpace(text), Confidence: conf}, nil
}
