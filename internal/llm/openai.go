// Package llm implements the extraction and summary backends on top of an
// OpenAI-compatible chat completion API, including Azure OpenAI deployments.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/extractor"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/retry"
	"github.com/Lllllllleong/docsummaryflow/internal/summarizer"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("openai integration is not configured")

// OpenAIClient implements extractor.TextRecognizer, extractor.Captioner and
// summarizer.Model against a chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	ocrModel    string
	capModel    string
	sumModel    string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient builds a client from the model configuration. APIType
// "azure" targets an Azure OpenAI resource where model names are deployment
// names.
func NewOpenAIClient(mc config.ModelConfig) (*OpenAIClient, error) {
	if mc.APIKey == "" {
		return nil, ErrNotConfigured
	}

	var cfg openai.ClientConfig
	if strings.EqualFold(mc.APIType, "azure") {
		if mc.BaseURL == "" {
			return nil, fmt.Errorf("azure api type requires a base url")
		}
		cfg = openai.DefaultAzureConfig(mc.APIKey, mc.BaseURL)
		if mc.APIVersion != "" {
			cfg.APIVersion = mc.APIVersion
		}
		cfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		cfg = openai.DefaultConfig(mc.APIKey)
		if mc.BaseURL != "" {
			cfg.BaseURL = mc.BaseURL
		}
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		ocrModel:    mc.OCRModel,
		capModel:    mc.CaptionModel,
		sumModel:    mc.SummaryModel,
		temperature: mc.Temperature,
		maxTokens:   mc.MaxOutputTokens,
	}, nil
}

// RecognizeText transcribes the text on a page image.
func (c *OpenAIClient) RecognizeText(ctx context.Context, page models.PageImage) (extractor.Recognition, error) {
	return c.recognize(ctx, c.ocrModel, "ocr", extractor.OCRSystemPrompt, extractor.OCRUserPrompt, page)
}

// Caption describes the visual content of a page image.
func (c *OpenAIClient) Caption(ctx context.Context, page models.PageImage) (extractor.Recognition, error) {
	return c.recognize(ctx, c.capModel, "caption", extractor.CaptionSystemPrompt, extractor.CaptionUserPrompt, page)
}

func (c *OpenAIClient) recognize(ctx context.Context, model, op, system, prompt string, page models.PageImage) (extractor.Recognition, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", page.MIMEType, base64.StdEncoding.EncodeToString(page.Data))
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURI, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
		MaxTokens:      c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	content, err := c.complete(ctx, req, op, models.KindExtractionTransient, models.KindExtractionUnavailable)
	if err != nil {
		return extractor.Recognition{}, err
	}
	return extractor.ParseRecognition(content)
}

// Summarize implements summarizer.Model.
func (c *OpenAIClient) Summarize(ctx context.Context, p summarizer.Prompt) (summarizer.Draft, error) {
	req := openai.ChatCompletionRequest{
		Model: c.sumModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizer.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: summarizer.UserPrompt(p)},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	content, err := c.complete(ctx, req, "summarize", models.KindSummarizationTransient, models.KindSummarizationRejected)
	if err != nil {
		return summarizer.Draft{}, err
	}
	return summarizer.DecodeResponse(content, p.Pages)
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest, op string, transient, blocked models.ErrorKind) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(err, op, transient, blocked)
	}
	if len(resp.Choices) == 0 {
		return "", models.NewError(transient, op+" returned no choices", nil)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", models.NewError(blocked, op+" response withheld by content filter", nil)
	}
	return strings.TrimSpace(choice.Message.Content), nil
}

// classifyError maps go-openai errors to the pipeline error kinds.
// Content filter rejections are never retried.
func classifyError(err error, op string, transient, blocked models.ErrorKind) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "content_filter" {
			return models.NewError(blocked, op+" rejected by content filter", err)
		}
		if retry.IsTransientStatus(apiErr.HTTPStatusCode) {
			return models.NewError(transient, fmt.Sprintf("%s call failed with status %d", op, apiErr.HTTPStatusCode), err)
		}
		return fmt.Errorf("%s call failed: %w", op, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if retry.IsTransientStatus(reqErr.HTTPStatusCode) || reqErr.HTTPStatusCode == http.StatusRequestTimeout {
			return models.NewError(transient, fmt.Sprintf("%s call failed with status %d", op, reqErr.HTTPStatusCode), err)
		}
		return fmt.Errorf("%s call failed: %w", op, err)
	}

	if retry.IsTransient(err) {
		return models.NewError(transient, op+" call failed", err)
	}
	return fmt.Errorf("%s call failed: %w", op, err)
}
