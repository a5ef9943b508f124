package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docproc/internal/bootstrap"
	"docproc/internal/pipeline"
)

func newTransformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform_json <txt_path> <user_id> <document_type>",
		Short: "Extract JSON from a text file and store it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(contextOf(cmd), true, func(app *bootstrap.App) error {
				rec, err := app.Pipeline.Transform(contextOf(cmd), args[0], args[1], args[2])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <user_id> <document_type>",
		Short: "Print stored documents of a type ('all' for every type)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(contextOf(cmd), cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <image_path> <user_id> <document_type>",
		Short: "Run OCR, extraction and storage on a local image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(contextOf(cmd), cmd.OutOrStdout(), args[0], args[1], args[2])
		},
	}
}

func runFetch(ctx context.Context, out io.Writer, userID, documentType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return withApp(ctx, false, func(app *bootstrap.App) error {
		res, err := app.Pipeline.Fetch(ctx, userID, documentType)
		if err != nil {
			return err
		}
		if !res.Found {
			_, err := fmt.Fprintln(out, res.Message)
			return err
		}
		return printJSON(out, res.Records)
	})
}

func runUpload(ctx context.Context, out io.Writer, imagePath, userID, documentType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	return withApp(ctx, true, func(app *bootstrap.App) error {
		rec, err := app.Pipeline.Process(ctx, pipeline.Upload{
			UserID:       userID,
			DocumentType: documentType,
			FileName:     filepath.Base(imagePath),
			Body:         f,
		})
		if err != nil {
			return err
		}
		return printJSON(out, rec)
	})
}
