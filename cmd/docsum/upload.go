package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/docsummaryflow/internal/gcp"
	"github.com/Lllllllleong/docsummaryflow/internal/localstore"
	"github.com/spf13/cobra"
)

var uploadLocalDir string

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Store a file under a generated name and print its reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		ref, err := store.Store(ctx, filepath.Base(args[0]), data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ref)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadLocalDir, "local", "", "store into this directory instead of the upload bucket")
	rootCmd.AddCommand(uploadCmd)
}

type blobStore interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

func openStore(ctx context.Context) (blobStore, error) {
	if uploadLocalDir != "" {
		local, err := localstore.New(uploadLocalDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	if cfg.GCP.UploadBucket == "" {
		return nil, fmt.Errorf("UPLOAD_BUCKET must be set, or use --local")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return gcp.NewBlobStore(client, cfg.GCP.UploadBucket), nil
}
