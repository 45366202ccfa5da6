package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/services"
)

var (
	summarizerInstance *services.SummarizerFunction
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleSummarizeDocument", handleSummarizeDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// handleSummarizeDocument is called by the workflow with a SummarizeRequest.
func handleSummarizeDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		cfg, err := config.Load(config.GetEnv("CONFIG_FILE", ""))
		if err != nil {
			initErr = err
			return
		}
		summarizerInstance, initErr = services.NewSummarizer(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("CRITICAL: Summarizer initialization failed.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body.", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := summarizerInstance.Process(r.Context(), &req)
	if err != nil && res == nil {
		if models.IsInputError(err) {
			// Retrying cannot help; the file itself was rejected.
			http.Error(w, "Unprocessable Entity: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		// Every chunk failed; the summary is still returned for inspection.
		w.WriteHeader(http.StatusInternalServerError)
	}
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
