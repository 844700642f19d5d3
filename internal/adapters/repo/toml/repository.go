package toml

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	SettingsPathKey = "config.path"

	settingsFileMode   = 0o600
	settingsDirMode    = 0o700
	settingsConfigDir  = ".config/dq"
	settingsConfigFile = "config.toml"
	tempFilePattern    = ".config-*.toml.tmp"
)

// Repository stores user settings in the same TOML file the configuration
// layer reads.
type Repository struct {
	settingsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SettingsRepository = (*Repository)(nil)

type setting struct {
	field    func(*fileSchema) *string
	validate func(string) error
}

var settings = map[string]setting{
	"server.url":         {field: func(f *fileSchema) *string { return &f.Server.URL }, validate: validateURL},
	"server.api_key_ref": {field: func(f *fileSchema) *string { return &f.Server.APIKeyRef }},
	"server.timeout":     {field: func(f *fileSchema) *string { return &f.Server.Timeout }, validate: validateDuration},
	"voice.provider":     {field: func(f *fileSchema) *string { return &f.Voice.Provider }, validate: oneOf("deepgram", "whisper", "none")},
	"voice.language":     {field: func(f *fileSchema) *string { return &f.Voice.Language }},
	"voice.recorder":     {field: func(f *fileSchema) *string { return &f.Voice.Recorder }},
	"log.level":          {field: func(f *fileSchema) *string { return &f.Log.Level }, validate: oneOf("trace", "debug", "info", "warn", "error", "disabled")},
	"log.file":           {field: func(f *fileSchema) *string { return &f.Log.File }},
	"notify.enter_delay": {field: func(f *fileSchema) *string { return &f.Notify.EnterDelay }, validate: validateDuration},
	"notify.display":     {field: func(f *fileSchema) *string { return &f.Notify.Display }, validate: validateDuration},
	"notify.exit":        {field: func(f *fileSchema) *string { return &f.Notify.Exit }, validate: validateDuration},
}

// Keys lists every supported setting in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(SettingsPathKey, filepath.Join(homeDir, settingsConfigDir, settingsConfigFile))

	settingsPath := cfg.GetString(SettingsPathKey)
	if settingsPath == "" {
		return nil, errors.New("settings path is empty")
	}
	settingsPath, err = normalizeSettingsPath(settingsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{settingsPath: settingsPath, mu: lockForPath(settingsPath)}, nil
}

func (r *Repository) Path() string {
	return r.settingsPath
}

func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entry, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return "", err
	}

	value := *entry.field(&file)
	if value == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}
	return value, nil
}

// Set validates and stores a single setting. An empty value removes it.
func (r *Repository) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}
	if value != "" && entry.validate != nil {
		if err := entry.validate(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	*entry.field(&file) = value

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

// All returns every setting that has a stored value.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(settings))
	for key, entry := range settings {
		if value := *entry.field(&file); value != "" {
			values[key] = value
		}
	}
	return values, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.settingsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read settings file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode settings file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeSettingsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve settings path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.settingsPath), settingsDirMode); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode settings file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.settingsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tempFile.Chmod(settingsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp settings file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}

	if err := os.Rename(tempName, r.settingsPath); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	cleanup = false

	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func validateDuration(raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func oneOf(allowed ...string) func(string) error {
	return func(value string) error {
		if slices.Contains(allowed, value) {
			return nil
		}
		return fmt.Errorf("must be one of %v", allowed)
	}
}
