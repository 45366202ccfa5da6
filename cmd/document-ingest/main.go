package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	ingestInstance *services.IngestFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("IngestDocument", ingestDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// ingestDocument is the Cloud Function entry point for GCS object-finalize events.
func ingestDocument(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		cfg, err := config.Load(config.GetEnv("CONFIG_FILE", ""))
		if err != nil {
			initErr = err
			return
		}
		ingestInstance, initErr = services.NewIngest(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var event models.IngestEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	if _, err := ingestInstance.Process(ctx, event); err != nil {
		// Returning the error marks the invocation as failed so the event is retried.
		return err
	}
	return nil
}
