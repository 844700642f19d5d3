package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, settingsPath string) *Repository {
	t.Helper()

	config := viper.New()
	config.Set(SettingsPathKey, settingsPath)

	repo, err := NewRepository(config)
	require.NoError(t, err)
	return repo
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "server.url", "https://qa.example.com/api"))
	require.NoError(t, repo.Set(ctx, "voice.provider", "whisper"))
	require.NoError(t, repo.Set(ctx, "notify.display", "5s"))

	got, err := repo.Get(ctx, "server.url")
	require.NoError(t, err)
	assert.Equal(t, "https://qa.example.com/api", got)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"server.url":     "https://qa.example.com/api",
		"voice.provider": "whisper",
		"notify.display": "5s",
	}, all)
}

func TestRepositoryEmptyValueRemovesSetting(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "log.level", "debug"))
	require.NoError(t, repo.Set(ctx, "log.level", ""))

	_, err := repo.Get(ctx, "log.level")
	require.ErrorIs(t, err, domain.ErrSettingNotFound)
}

func TestRepositoryUnknownKey(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))

	_, err := repo.Get(context.Background(), "server.colour")
	require.ErrorIs(t, err, domain.ErrSettingNotFound)

	err = repo.Set(context.Background(), "ui.theme", "/tmp/x")
	require.ErrorIs(t, err, domain.ErrSettingNotFound)
}

func TestRepositoryValidatesValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key   string
		value string
		msg   string
	}{
		{key: "server.url", value: "ftp://qa.example.com", msg: "must use http or https"},
		{key: "server.url", value: "http://", msg: "host is required"},
		{key: "server.timeout", value: "soon", msg: "invalid server.timeout"},
		{key: "notify.exit", value: "-1s", msg: "must be positive"},
		{key: "voice.provider", value: "siri", msg: "must be one of"},
		{key: "log.level", value: "loud", msg: "must be one of"},
	}

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := repo.Set(context.Background(), tt.key, tt.value)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestRepositoryMissingFileBehaviors(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "missing", "config.toml"))

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = repo.Get(context.Background(), "server.url")
	require.ErrorIs(t, err, domain.ErrSettingNotFound)
}

func TestRepositorySetCreatesPathAndEnforcesPermissions(t *testing.T) {
	t.Parallel()

	settingsPath := filepath.Join(t.TempDir(), "nested", "dq", "config.toml")
	repo := newTestRepository(t, settingsPath)

	require.NoError(t, repo.Set(context.Background(), "voice.language", "fr-FR"))

	info, err := os.Stat(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
	assert.Contains(t, string(data), "[voice]")
	assert.Contains(t, string(data), "fr-FR")
}

func TestRepositoryReadsHandWrittenFile(t *testing.T) {
	t.Parallel()

	settingsPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(settingsPath, []byte(strings.Join([]string{
		"[server]",
		`url = "http://localhost:8000"`,
		"",
		"[notify]",
		`exit = "500ms"`,
		"",
	}, "\n")), 0o600))

	repo := newTestRepository(t, settingsPath)

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"server.url":  "http://localhost:8000",
		"notify.exit": "500ms",
	}, all)
}

func TestRepositoryMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	settingsPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(settingsPath, []byte("[server\nurl = "), 0o600))

	repo := newTestRepository(t, settingsPath)

	_, err := repo.All(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode settings file")
}

func TestRepositorySetCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Set(ctx, "server.url", "http://localhost:8000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRepositoryConcurrentSetsAcrossInstancesPreserveBothKeys(t *testing.T) {
	t.Parallel()

	settingsPath := filepath.Join(t.TempDir(), "config.toml")
	repoA := newTestRepository(t, settingsPath)
	repoB := newTestRepository(t, settingsPath)

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repoA.Set(context.Background(), "server.url", "http://host-"+strconv.Itoa(i)+".example.com")
		}
	}()

	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repoB.Set(context.Background(), "notify.display", strconv.Itoa(i+1)+"s")
		}
	}()

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	all, err := repoA.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://host-49.example.com", all["server.url"])
	assert.Equal(t, "50s", all["notify.display"])
}

func TestRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	settingsPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(settingsPath, []byte("version = 999\n"), 0o600))

	repo := newTestRepository(t, settingsPath)

	_, err := repo.All(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported settings schema version")
}

func TestKeysAreSorted(t *testing.T) {
	t.Parallel()

	keys := Keys()
	assert.Contains(t, keys, "server.url")
	assert.IsNonDecreasing(t, keys)
}
