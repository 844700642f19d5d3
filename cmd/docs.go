package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bnema/docqa-cli/internal/adapters/render/markup"
	statusadapter "github.com/bnema/docqa-cli/internal/adapters/render/status"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/spf13/cobra"
)

type statusOutput struct {
	Server        string `json:"server"`
	DocumentCount int    `json:"document_count"`
	Loaded        bool   `json:"loaded"`
	Label         string `json:"label"`
}

func newDocsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage the server's document collection",
	}

	cmd.AddCommand(
		newDocsStatusCmd(app),
		newDocsUploadCmd(app),
		newDocsClearCmd(app),
	)

	return cmd
}

func newDocsStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how many documents the server holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := app.qaClient(cmd.Context(), app.logger)
			serverURL := app.config.GetString("server.url")

			started := app.now()
			var result domain.StatusResult
			err := waitFor(cmd, app, "Checking documents...", func(ctx context.Context) error {
				var statusErr error
				result, statusErr = client.Status(ctx)
				return statusErr
			})
			finished := app.now()

			status := domain.DocumentStatus{Count: result.DocumentCount}
			if asJSON {
				if err != nil {
					return fmt.Errorf("check document status: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statusOutput{
					Server:        serverURL,
					DocumentCount: status.Count,
					Loaded:        status.Loaded(),
					Label:         status.Label(),
				})
			}

			rendered, renderErr := app.statusRenderer(statusadapter.Report{
				Server:    serverURL,
				Status:    status,
				CheckedAt: finished,
				Latency:   finished.Sub(started),
				Err:       err,
			})
			if renderErr != nil {
				return fmt.Errorf("render status: %w", renderErr)
			}
			if _, writeErr := fmt.Fprintln(cmd.OutOrStdout(), rendered); writeErr != nil {
				return writeErr
			}
			if err != nil {
				return fmt.Errorf("check document status: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")

	return cmd
}

func newDocsUploadCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller := app.newController(cmd.Context(), nil)

			var (
				reply    domain.Message
				accepted bool
			)
			err := waitFor(cmd, app, "Uploading...", func(ctx context.Context) error {
				reply, accepted = controller.UploadDocument(ctx, args[0])
				return nil
			})
			if err != nil {
				return err
			}
			if !accepted {
				return errors.New("file path is empty")
			}

			text := markup.Plain(markup.FormatMessage(reply.Body))
			if reply.IsError() {
				return errors.New(text)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\ndocuments: %s\n", text, controller.State().Documents.CountLabel())
			return err
		},
	}
}

func newDocsClearCmd(app *app) *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every document from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			confirmer := confirmerFor(cmd.InOrStdin(), cmd.ErrOrStderr(), assumeYes)
			controller := app.newController(cmd.Context(), confirmer)

			cleared, err := controller.ClearDocuments(cmd.Context())
			if err != nil {
				return err
			}
			if !cleared {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return err
			}

			last, _ := controller.State().Transcript.Last()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), markup.Plain(markup.FormatMessage(last.Body)))
			return err
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}
