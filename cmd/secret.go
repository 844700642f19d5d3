package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newSecretCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage stored API keys",
		Long: "Stores keys for the document server (\"server\"), Deepgram (\"deepgram\") and OpenAI (\"openai\"). " +
			"DQ_SECRET_<KEY> environment variables take precedence over stored values.",
	}

	cmd.AddCommand(
		newSecretSetCmd(app),
		newSecretRmCmd(app),
	)

	return cmd
}

func newSecretSetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a secret; reads the value from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read secret value: %w", err)
				}
				value = line
			}

			value = strings.TrimSpace(value)
			if value == "" {
				return errors.New("secret value is empty")
			}

			if err := app.secretStore.Put(cmd.Context(), key, value); err != nil {
				return fmt.Errorf("store secret %q: %w", key, err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stored secret %s\n", key)
			return err
		},
	}
}

func newSecretRmCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove"},
		Short:   "Remove a stored secret",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.secretStore.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove secret %q: %w", args[0], err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed secret %s\n", args[0])
			return err
		},
	}
}
