package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/pipeline"
	"github.com/Lllllllleong/docsummaryflow/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	summarizeFormat string
	summarizeOut    string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Run the full pipeline on a local file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeFormat, "format", "f", "markdown", "output format: markdown or json")
	summarizeCmd.Flags().StringVarP(&summarizeOut, "out", "o", "", "write the result to this file instead of stdout")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if summarizeFormat != "markdown" && summarizeFormat != "json" {
		return fmt.Errorf("unknown format %q", summarizeFormat)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	backend, closeBackend, err := services.NewBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	recorder := &pipeline.MemoryRecorder{}
	extractCache, closeCache := services.NewExtractionCache(ctx, cfg.Cache)
	defer closeCache()
	controller := services.NewController(cfg, backend, extractCache, recorder, slog.Default())

	name := filepath.Base(path)
	final, runErr := controller.Run(ctx, pipeline.Input{DocumentID: uuid.NewString(), Filename: name, Data: data})
	if final == nil {
		return runErr
	}

	var out io.Writer = cmd.OutOrStdout()
	if summarizeOut != "" {
		f, err := os.Create(summarizeOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", summarizeOut, err)
		}
		defer f.Close()
		out = f
	}
	if err := writeSummary(out, name, final); err != nil {
		return err
	}

	if final.Status != models.StatusComplete {
		fmt.Fprintf(cmd.ErrOrStderr(), "status %s: %d range(s) not summarized\n", final.Status, len(final.FailedRanges))
	}
	return runErr
}

func writeSummary(w io.Writer, name string, final *models.FinalSummary) error {
	if summarizeFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(final)
	}
	_, err := io.WriteString(w, services.RenderReport(name, final))
	return err
}
