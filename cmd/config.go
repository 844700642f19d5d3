package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	tomlrepo "github.com/bnema/docqa-cli/internal/adapters/repo/toml"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newConfigCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change settings",
	}

	cmd.AddCommand(
		newConfigShowCmd(app),
		newConfigSetCmd(app),
		newConfigUnsetCmd(app),
		newConfigPathCmd(app),
	)

	return cmd
}

func newConfigShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [key]",
		Short: "Print effective settings (file, environment and defaults)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := tomlrepo.Keys()
			if len(args) == 1 {
				if !slices.Contains(keys, args[0]) {
					return fmt.Errorf("%w: %s", domain.ErrSettingNotFound, args[0])
				}
				keys = args
			}

			values := make(map[string]string, len(keys))
			for _, key := range keys {
				values[key] = app.config.GetString(key)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(values)
			}

			if len(args) == 1 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), values[args[0]])
				return err
			}

			out := bufio.NewWriter(cmd.OutOrStdout())
			for _, key := range keys {
				_, _ = fmt.Fprintf(out, "%s = %s\n", key, displayValue(values[key]))
			}
			return out.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print settings as JSON")

	return cmd
}

func newConfigSetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], strings.TrimSpace(args[1])
			if value == "" {
				return errors.New("value is empty; use \"dq config unset\" to remove a setting")
			}
			if err := app.settings.Set(cmd.Context(), key, value); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
			return err
		},
	}
}

func newConfigUnsetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a setting from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.settings.Set(cmd.Context(), args[0], "")
		},
	}
}

func newConfigPathCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.settings.Path())
			return err
		},
	}
}

func displayValue(value string) string {
	if value == "" {
		return "(unset)"
	}
	return value
}
