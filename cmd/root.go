package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	app := &app{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dq",
		Short: "Document Q&A CLI (dq): ask questions about your uploaded documents",
		Long: "dq talks to a document question-answering server. Run it without a subcommand for the " +
			"interactive chat, or use the one-shot commands to ask, upload and manage documents from scripts.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.wire(cmd, configPath)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, app)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/dq/config.toml, env DQ_CONFIG)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newChatCmd(app),
		newAskCmd(app),
		newDocsCmd(app),
		newConfigCmd(app),
		newSecretCmd(app),
	)

	return rootCmd
}
