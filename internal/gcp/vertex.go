package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/extractor"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/retry"
	"github.com/Lllllllleong/docsummaryflow/internal/summarizer"
)

// VertexClient holds the pre-configured Gemini models used by the pipeline.
// It implements extractor.TextRecognizer, extractor.Captioner and
// summarizer.Model.
type VertexClient struct {
	OCRModel     *genai.GenerativeModel
	CaptionModel *genai.GenerativeModel
	SummaryModel *genai.GenerativeModel
	baseClient   *genai.Client
}

var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region string, mc config.ModelConfig) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	newModel := func(name, system string, temperature float32) *genai.GenerativeModel {
		m := baseClient.GenerativeModel(name)
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		m.GenerationConfig = genai.GenerationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr(temperature),
			MaxOutputTokens:  genai.Ptr(int32(mc.MaxOutputTokens)),
		}
		m.SafetySettings = safetySettings
		return m
	}

	// Transcription and captioning run at zero temperature.
	client := &VertexClient{
		OCRModel:     newModel(mc.OCRModel, extractor.OCRSystemPrompt, 0),
		CaptionModel: newModel(mc.CaptionModel, extractor.CaptionSystemPrompt, 0),
		SummaryModel: newModel(mc.SummaryModel, summarizer.SystemPrompt, mc.Temperature),
		baseClient:   baseClient,
	}
	slog.Info("Vertex AI models configured.", "ocrModel", mc.OCRModel, "captionModel", mc.CaptionModel, "summaryModel", mc.SummaryModel)
	return client, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// RecognizeText transcribes the text on a page image.
func (c *VertexClient) RecognizeText(ctx context.Context, page models.PageImage) (extractor.Recognition, error) {
	return c.recognize(ctx, c.OCRModel, "ocr", extractor.OCRUserPrompt, page)
}

// Caption describes the visual content of a page image.
func (c *VertexClient) Caption(ctx context.Context, page models.PageImage) (extractor.Recognition, error) {
	return c.recognize(ctx, c.CaptionModel, "caption", extractor.CaptionUserPrompt, page)
}

func (c *VertexClient) recognize(ctx context.Context, model *genai.GenerativeModel, op, prompt string, page models.PageImage) (extractor.Recognition, error) {
	img := genai.Blob{MIMEType: page.MIMEType, Data: page.Data}
	resp, err := model.GenerateContent(ctx, img, genai.Text(prompt))
	if err != nil {
		return extractor.Recognition{}, classifyVertexError(err, op, models.KindExtractionTransient, models.KindExtractionUnavailable)
	}
	return extractor.ParseRecognition(responseText(resp))
}

// Summarize implements summarizer.Model.
func (c *VertexClient) Summarize(ctx context.Context, p summarizer.Prompt) (summarizer.Draft, error) {
	resp, err := c.SummaryModel.GenerateContent(ctx, genai.Text(summarizer.UserPrompt(p)))
	if err != nil {
		return summarizer.Draft{}, classifyVertexError(err, "summarize", models.KindSummarizationTransient, models.KindSummarizationRejected)
	}
	return summarizer.DecodeResponse(responseText(resp), p.Pages)
}

// classifyVertexError maps a GenerateContent error to the pipeline error
// kinds. Safety blocks are never retried.
func classifyVertexError(err error, op string, transient, blocked models.ErrorKind) error {
	var blockedErr *genai.BlockedError
	if errors.As(err, &blockedErr) {
		return models.NewError(blocked, op+" blocked by safety filters", err)
	}
	if retry.IsTransient(err) {
		return models.NewError(transient, op+" call failed", err)
	}
	return fmt.Errorf("failed to generate content from gemini: %w", err)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
