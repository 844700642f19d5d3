package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/bnema/docqa-cli/internal/adapters/qa"
	statusadapter "github.com/bnema/docqa-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/docqa-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/docqa-cli/internal/adapters/secrets/chain"
	"github.com/bnema/docqa-cli/internal/adapters/speech"
	"github.com/bnema/docqa-cli/internal/adapters/speech/deepgram"
	"github.com/bnema/docqa-cli/internal/adapters/speech/whisper"
	"github.com/bnema/docqa-cli/internal/application"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	envPrefix       = "DQ"
	configPathEnv   = "DQ_CONFIG"
	defaultSettings = ".config/dq/config.toml"

	providerDeepgram = "deepgram"
	providerWhisper  = "whisper"
	providerNone     = "none"

	secretDeepgram = "deepgram"
	secretOpenAI   = "openai"
)

var configDefaults = map[string]any{
	"server.url":         "http://127.0.0.1:5000",
	"server.api_key_ref": "server",
	"server.timeout":     "2m",
	"voice.provider":     providerDeepgram,
	"voice.language":     "en-US",
	"voice.recorder":     "arecord",
	"log.level":          "info",
	"log.file":           "",
	"notify.enter_delay": "100ms",
	"notify.display":     "3s",
	"notify.exit":        "300ms",
}

// credentials are provider keys taken from the environment or a .env file.
// The secret store is consulted for any that are unset.
type credentials struct {
	ServerAPIKey   string `env:"DQ_API_KEY"`
	DeepgramAPIKey string `env:"DEEPGRAM_API_KEY"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
}

type app struct {
	config         *viper.Viper
	settings       *tomlrepo.Repository
	secretStore    ports.SecretStore
	creds          credentials
	logger         zerolog.Logger
	statusRenderer func(statusadapter.Report) (string, error)
	clipboard      func(string) error
	httpClient     *http.Client
	interactive    bool
	now            func() time.Time
}

func (a *app) wire(cmd *cobra.Command, configPath string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv(configPathEnv)
	}
	if configPath == "" {
		configPath = filepath.Join(homeDir, defaultSettings)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	repo, err := tomlrepo.NewRepository(cfg)
	if err != nil {
		return fmt.Errorf("wire settings repository: %w", err)
	}

	secretStore, err := chainstore.NewEnvFirstWithFileFallback(filepath.Join(filepath.Dir(repo.Path()), "secrets"))
	if err != nil {
		return fmt.Errorf("wire secret store chain: %w", err)
	}

	creds, err := loadCredentials()
	if err != nil {
		return err
	}

	a.config = cfg
	a.settings = repo
	a.secretStore = secretStore
	a.creds = creds
	a.logger = newConsoleLogger(cmd.ErrOrStderr(), cfg.GetString("log.level"))
	a.statusRenderer = statusadapter.Render
	a.clipboard = clipboard.WriteAll
	a.httpClient = http.DefaultClient
	a.interactive = isTerminal(cmd.ErrOrStderr())
	a.now = time.Now

	return nil
}

func loadConfig(path string) (*viper.Viper, error) {
	cfg := viper.New()
	for key, value := range configDefaults {
		cfg.SetDefault(key, value)
	}

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	cfg.SetConfigFile(path)
	cfg.SetConfigType("toml")
	if err := cfg.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.Set(tomlrepo.SettingsPathKey, path)
	return cfg, nil
}

func loadCredentials() (credentials, error) {
	// A missing .env file is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return credentials{}, fmt.Errorf("load .env: %w", err)
	}

	var creds credentials
	if err := env.Parse(&creds); err != nil {
		return credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}

// secretValue resolves a stored secret, treating a missing one as empty.
func (a *app) secretValue(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}

	value, err := a.secretStore.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrSecretNotFound) {
			a.logger.Warn().Err(err).Str("key", key).Msg("read secret")
		}
		return ""
	}
	return value
}

func (a *app) qaClient(ctx context.Context, logger zerolog.Logger) qa.Client {
	apiKey := a.creds.ServerAPIKey
	if apiKey == "" {
		apiKey = a.secretValue(ctx, a.config.GetString("server.api_key_ref"))
	}

	return qa.Client{
		BaseURL:        a.config.GetString("server.url"),
		APIKey:         apiKey,
		HTTPClient:     a.httpClient,
		RequestTimeout: a.config.GetDuration("server.timeout"),
		Logger:         logger,
	}
}

// speechRecognizer returns nil when voice input cannot work on this machine:
// no provider, no key, or no recorder on PATH.
func (a *app) speechRecognizer(ctx context.Context, logger zerolog.Logger) ports.SpeechRecognizer {
	provider := strings.ToLower(a.config.GetString("voice.provider"))
	if provider == providerNone || provider == "" {
		return nil
	}

	recorder := a.config.GetString("voice.recorder")
	if _, err := exec.LookPath(recorder); err != nil {
		logger.Info().Str("recorder", recorder).Msg("voice input disabled: recorder not found")
		return nil
	}
	source := speech.Recorder{Command: recorder}
	language := a.config.GetString("voice.language")

	switch provider {
	case providerDeepgram:
		key := a.creds.DeepgramAPIKey
		if key == "" {
			key = a.secretValue(ctx, secretDeepgram)
		}
		if key == "" {
			logger.Info().Msg("voice input disabled: no deepgram key")
			return nil
		}
		return deepgram.New(deepgram.Config{APIKey: key, Language: language, Source: source, Logger: logger})
	case providerWhisper:
		key := a.creds.OpenAIAPIKey
		if key == "" {
			key = a.secretValue(ctx, secretOpenAI)
		}
		if key == "" {
			logger.Info().Msg("voice input disabled: no openai key")
			return nil
		}
		return whisper.New(whisper.Config{
			APIKey:   key,
			BaseURL:  a.creds.OpenAIBaseURL,
			Language: language,
			Source:   source,
			Logger:   logger,
		})
	default:
		logger.Warn().Str("provider", provider).Msg("voice input disabled: unknown provider")
		return nil
	}
}

func (a *app) notificationTiming() application.NotificationTiming {
	return application.NotificationTiming{
		EnterDelay: a.config.GetDuration("notify.enter_delay"),
		Display:    a.config.GetDuration("notify.display"),
		Exit:       a.config.GetDuration("notify.exit"),
	}
}

// newController builds a controller for one-shot commands. Those never
// observe state, so no observer is attached.
func (a *app) newController(ctx context.Context, confirmer ports.Confirmer) *application.Controller {
	return application.NewController(a.qaClient(ctx, a.logger), confirmer, application.ControllerConfig{
		Logger:        a.logger,
		Notifications: a.notificationTiming(),
	})
}

// isTerminal reports whether stream is a terminal. Readers and writers that
// are not files, such as test buffers, never are.
func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
