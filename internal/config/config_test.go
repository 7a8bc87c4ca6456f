package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Feed.BaseURL = "https://jobs.example.com/"
	cfg.Feed.Domain = "example.com"
	return cfg
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
feed:
  base_url: https://jobs.example.com
  page_size: 25
  query:
    Teams: Engineering
polling:
  interval_minutes: 5
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Feed.PageSize)
	assert.Equal(t, 10, cfg.Feed.PageDelaySeconds, "unset keys keep defaults")
	assert.Equal(t, "Engineering", cfg.Feed.Query["Teams"])
	assert.Equal(t, DefaultPort, cfg.App.Port)
	assert.Equal(t, 5*60, int(cfg.Interval().Seconds()))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDSNDefaultsToDataDir(t *testing.T) {
	cfg := Defaults()
	cfg.App.DataDir = "/var/lib/jobwatch"
	assert.Equal(t, filepath.Join("/var/lib/jobwatch", DefaultDBName), cfg.DSN())

	cfg.Store.DSN = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.DSN())
}

func TestNormalizeAndValidate(t *testing.T) {
	out, res := NormalizeAndValidate(validConfig())
	assert.True(t, res.OK(), res.Errors)
	assert.Equal(t, "https://jobs.example.com", out.Feed.BaseURL)

	bad := validConfig()
	bad.Feed.BaseURL = "not a url"
	bad.Feed.DetailPath = "/jobs"
	bad.Polling.Workers = 0
	bad.Store.Driver = "Postgres"
	_, res = NormalizeAndValidate(bad)
	assert.False(t, res.OK())
	assert.Contains(t, res.Errors, "feed.detail_path must contain the {id} placeholder")
	assert.Contains(t, res.Errors, "polling.workers must be > 0")
	assert.Contains(t, res.Errors, "store.dsn is required when store.driver=postgres")

	var ve *ValidationError
	require.ErrorAs(t, Validate(bad), &ve)
	assert.Len(t, ve.Problems, len(res.Errors))
}

func TestValidationWarnings(t *testing.T) {
	cfg := validConfig()
	cfg.Feed.PageDelaySeconds = 0
	cfg.Notify.Events = false
	cfg.Notify.Log = false

	_, res := NormalizeAndValidate(cfg)
	assert.True(t, res.OK())
	assert.Len(t, res.Warnings, 2)
}

func TestOverlayEnv(t *testing.T) {
	t.Setenv("JOBWATCH_PORT", "40000")
	t.Setenv("JOBWATCH_STORE_DRIVER", "postgres")
	t.Setenv("JOBWATCH_STORE_DSN", "postgres://db")
	t.Setenv("JOBWATCH_DATA_DIR", "/tmp/jw")
	t.Setenv("JOBWATCH_LOG_LEVEL", "debug")

	cfg := Defaults()
	require.NoError(t, OverlayEnv(&cfg))
	assert.Equal(t, 40000, cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://db", cfg.Store.DSN)
	assert.Equal(t, "/tmp/jw", cfg.App.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)

	t.Setenv("JOBWATCH_PORT", "abc")
	var ve *ValidationError
	assert.ErrorAs(t, OverlayEnv(&cfg), &ve)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")), "missing file is fine")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JOBWATCH_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("JOBWATCH_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("JOBWATCH_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("JOBWATCH_TEST_DOTENV"))
}

func TestSaveAtomicKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	cfg := validConfig()
	require.NoError(t, SaveAtomic(path, cfg))
	cfg.Feed.PageSize = 20
	require.NoError(t, SaveAtomic(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Feed.PageSize)

	bak, err := Load(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, 10, bak.Feed.PageSize)

	cfg.App.Port = 0
	assert.Error(t, SaveAtomic(path, cfg))
}

func TestEnsureUserConfig(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(t.TempDir(), "default.yml")
	require.NoError(t, os.WriteFile(def, []byte("app:\n  port: 1234\n"), 0o600))

	p, err := EnsureUserConfig(dir, def)
	require.NoError(t, err)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.App.Port)

	// existing file is left alone
	require.NoError(t, os.WriteFile(def, []byte("app:\n  port: 9999\n"), 0o600))
	p, err = EnsureUserConfig(dir, def)
	require.NoError(t, err)
	cfg, err = Load(p)
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.App.Port)
}

func TestEnsureUserConfigWithoutTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	p, err := EnsureUserConfig(dir, filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Feed.DetailPath, cfg.Feed.DetailPath)
}
