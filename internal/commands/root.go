// Package commands holds the docproc CLI commands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"docproc/internal/bootstrap"
	"docproc/internal/shared/config"
	"docproc/internal/shared/telemetry"
	"docproc/internal/tui"
)

// BuildApp constructs the application for a command. Tests replace it.
var BuildApp = func() (*bootstrap.App, error) {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	return bootstrap.Build(cfg)
}

// NewRootCmd returns the docproc command tree. Without a subcommand it
// starts the interactive prompt.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docproc",
		Short: "Extract structured data from document images",
		Long: `docproc runs document images through OCR, turns the text into JSON with
an LLM, and stores the result per user and document type.

Commands:
  transform_json <txt_path> <user_id> <document_type>   Extract and store JSON from a text file
  fetch <user_id> <document_type>                       Print stored documents ('all' for every type)
  upload <image_path> <user_id> <document_type>         Run the full pipeline on a local image
  serve                                                 Start the HTTP API

Run without arguments for the interactive prompt.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runInteractive,
	}

	root.AddCommand(newTransformCmd(), newFetchCmd(), newUploadCmd(), newServeCmd())
	return root
}

func runInteractive(cmd *cobra.Command, args []string) error {
	res, err := tui.Run(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if !res.Completed {
		return nil
	}

	switch res.Action {
	case tui.ActionUpload:
		return runUpload(contextOf(cmd), cmd.OutOrStdout(), res.ImagePath, res.UserID, res.DocumentType)
	case tui.ActionFetch:
		return runFetch(contextOf(cmd), cmd.OutOrStdout(), res.UserID, res.DocumentType)
	}
	return fmt.Errorf("unknown action %q", res.Action)
}

// withApp builds the app, runs fn and releases the app's resources.
func withApp(ctx context.Context, needLLM bool, fn func(*bootstrap.App) error) error {
	app, err := BuildApp()
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))
	if err := app.RequireCLI(needLLM); err != nil {
		return err
	}
	return fn(app)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
