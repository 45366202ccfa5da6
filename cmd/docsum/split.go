package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/docsummaryflow/internal/splitter"
	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Validate a file and list its rendered pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		res, err := splitter.New(cfg.Pipeline).Split(cmd.Context(), data, filepath.Base(args[0]))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "format: %s\npages: %d\n", res.Format, len(res.Pages))
		if res.Truncated {
			fmt.Fprintf(out, "truncated from %d pages\n", res.OriginalPageCount)
		}
		for _, p := range res.Pages {
			fmt.Fprintf(out, "  page %d: %dx%d %s (%d bytes)\n", p.Index, p.Width, p.Height, p.MIMEType, len(p.Data))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
}
