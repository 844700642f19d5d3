package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/docqa-cli/internal/adapters/render/markup"
	"github.com/bnema/docqa-cli/internal/application"
	"github.com/spf13/cobra"
)

type askOutput struct {
	Question     string  `json:"question"`
	Answer       string  `json:"answer,omitempty"`
	Cached       bool    `json:"cached"`
	ResponseTime float64 `json:"response_time"`
	Error        string  `json:"error,omitempty"`
}

func newAskCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the uploaded documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller := app.newController(cmd.Context(), nil)

			var (
				exchange  application.Exchange
				submitted bool
			)
			err := waitFor(cmd, app, "Thinking...", func(ctx context.Context) error {
				exchange, submitted = controller.Ask(ctx, strings.Join(args, " "))
				return nil
			})
			if err != nil {
				return err
			}
			if !submitted {
				return errors.New("question is empty")
			}

			text := markup.Plain(markup.FormatMessage(exchange.Reply.Body))
			if asJSON {
				out := askOutput{
					Question:     exchange.Question,
					Answer:       exchange.Result.Answer.Text,
					Cached:       exchange.Result.Answer.Cached,
					ResponseTime: exchange.Result.Answer.ResponseTime,
				}
				if exchange.Reply.IsError() {
					out.Error = text
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			if exchange.Reply.IsError() {
				return errors.New(text)
			}
			if asJSON {
				return nil
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")

	return cmd
}
