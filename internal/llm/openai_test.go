package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/summarizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatResponse(content, finish string) string {
	body, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
	})
	return string(body)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	var body map[string]any
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	mc := config.Default().Model
	mc.APIKey = "test-key"
	mc.BaseURL = srv.URL + "/v1"
	mc.OCRModel, mc.CaptionModel, mc.SummaryModel = "gpt-4o", "gpt-4o-mini", "gpt-4o"
	c, err := NewOpenAIClient(mc)
	require.NoError(t, err)
	return c
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(config.Default().Model)
	assert.ErrorIs(t, err, ErrNotConfigured)

	mc := config.Default().Model
	mc.APIKey, mc.APIType = "k", "azure"
	_, err = NewOpenAIClient(mc)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	requests := make(chan map[string]any, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		requests <- decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(`{"summary":"Revenue grew.","keyFacts":["+12%"],"entities":["Acme"],"digest":"Revenue grew."}`, "stop"))
	})

	d, err := c.Summarize(context.Background(), summarizer.Prompt{
		Pages: models.PageRange{First: 1, Last: 2},
		Body:  "Page 1\nCaption: chart\nText: revenue",
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew.", d.Summary)
	assert.Equal(t, []string{"Acme"}, d.Entities)

	got := <-requests
	assert.Equal(t, "gpt-4o", got["model"])
	assert.InDelta(t, 0.3, got["temperature"], 1e-6)
	assert.EqualValues(t, 800, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, summarizer.SystemPrompt, msgs[0].(map[string]any)["content"])
	assert.Contains(t, msgs[1].(map[string]any)["content"], "Summarize pages 1-2 of the document.")
}

func TestRecognizeText_SendsImageDataURI(t *testing.T) {
	requests := make(chan map[string]any, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests <- decodeBody(t, r)
		_, _ = io.WriteString(w, chatResponse(`{"text":"Total 42","confidence":0.8}`, "stop"))
	})

	rec, err := c.RecognizeText(context.Background(), models.PageImage{Index: 1, MIMEType: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "Total 42", rec.Text)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-9)

	got := <-requests
	user := got["messages"].([]any)[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.Equal(t, "data:image/png;base64,AQID", url)
}

func TestErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind models.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, models.KindSummarizationTransient},
		{"server error", http.StatusBadGateway, `{"error":{"message":"upstream","type":"server_error"}}`, models.KindSummarizationTransient},
		{"content filter", http.StatusBadRequest, `{"error":{"message":"The response was filtered","type":"invalid_request_error","code":"content_filter"}}`, models.KindSummarizationRejected},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad input","type":"invalid_request_error","code":"invalid_value"}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Summarize(context.Background(), summarizer.Prompt{Pages: models.PageRange{First: 1, Last: 1}})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, models.KindOf(err))
			assert.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestCaptionErrorUsesExtractionKinds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	})
	_, err := c.Caption(context.Background(), models.PageImage{MIMEType: "image/png"})
	assert.ErrorIs(t, err, models.ErrExtractionTransient)
}

func TestContentFilterFinishReasonIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatResponse("", "content_filter"))
	})
	_, err := c.Summarize(context.Background(), summarizer.Prompt{})
	assert.ErrorIs(t, err, models.ErrSummarizationRejected)
}

func TestRefusalIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatResponse("I am unable to summarize this content.", "stop"))
	})
	_, err := c.Summarize(context.Background(), summarizer.Prompt{})
	assert.ErrorIs(t, err, models.ErrSummarizationRejected)
}

func TestSummaryQuotingRefusalWordingIsAccepted(t *testing.T) {
	body := `{"summary":"The contractor wrote: I am unable to complete phase 2 by March.","keyFacts":["Phase 2 is late"],"entities":[],"digest":"Phase 2 slipped."}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatResponse(body, "stop"))
	})
	d, err := c.Summarize(context.Background(), summarizer.Prompt{Pages: models.PageRange{First: 1, Last: 1}})
	require.NoError(t, err)
	assert.Contains(t, d.Summary, "I am unable to complete phase 2")
	assert.Equal(t, "Phase 2 slipped.", d.Digest)
}

func TestAzureUsesDeploymentPath(t *testing.T) {
	urls := make(chan *url.URL, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urls <- r.URL
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		_, _ = io.WriteString(w, chatResponse(`{"summary":"ok"}`, "stop"))
	}))
	defer srv.Close()

	mc := config.Default().Model
	mc.APIKey, mc.APIType, mc.BaseURL, mc.APIVersion = "azure-key", "azure", srv.URL, "2024-06-01"
	mc.SummaryModel = "summary-gpt-4.1"
	c, err := NewOpenAIClient(mc)
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), summarizer.Prompt{})
	require.NoError(t, err)
	u := <-urls
	assert.True(t, strings.HasSuffix(u.Path, "/openai/deployments/summary-gpt-4.1/chat/completions"), u.Path)
	assert.Equal(t, "2024-06-01", u.Query().Get("api-version"))
}
