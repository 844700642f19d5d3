package ports

import "context"

// SettingsRepository persists user-level client settings as dotted keys
// ("server.url", "voice.provider").
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	All(ctx context.Context) (map[string]string, error)
}
