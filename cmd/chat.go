package cmd

import (
	"context"
	"errors"

	chatadapter "github.com/bnema/docqa-cli/internal/adapters/render/chat"
	"github.com/bnema/docqa-cli/internal/application"
	"github.com/spf13/cobra"
)

const chatTitle = "Document Q&A"

var errNoTerminal = errors.New("interactive chat needs a terminal; use \"dq ask\" from scripts")

func newChatCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat (default command)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, app)
		},
	}
}

func runChat(cmd *cobra.Command, app *app) error {
	if !isTerminal(cmd.InOrStdin()) {
		return errNoTerminal
	}

	logger, logFile, err := openFileLogger(app.config.GetString("log.file"), app.config.GetString("log.level"))
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bridge := chatadapter.NewBridge()
	voice := app.speechRecognizer(ctx, logger)
	controller := application.NewController(app.qaClient(ctx, logger), bridge, application.ControllerConfig{
		Voice:         voice,
		Observer:      bridge,
		Logger:        logger,
		Notifications: app.notificationTiming(),
	})
	if voice != nil {
		defer func() { _ = voice.Stop() }()
	}
	go controller.ListenVoice(ctx)

	serverURL := app.config.GetString("server.url")
	logger.Info().Str("server", serverURL).Bool("voice", controller.VoiceAvailable()).Msg("chat started")

	err = chatadapter.Run(ctx, controller, bridge, chatadapter.Options{
		Title:     chatTitle,
		ServerURL: serverURL,
		Clipboard: app.clipboard,
	})
	if err != nil {
		logger.Error().Err(err).Msg("chat ended with error")
		return err
	}

	logger.Info().Msg("chat ended")
	return nil
}
