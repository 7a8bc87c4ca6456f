package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const EnvPrefix = "JOBWATCH_"

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// OverlayEnv applies JOBWATCH_* environment overrides to cfg.
func OverlayEnv(cfg *Config) error {
	if v := env("DATA_DIR"); v != "" {
		cfg.App.DataDir = v
	}
	if v := env("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := env("STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Problems: []string{EnvPrefix + "PORT must be an integer, got " + strconv.Quote(v)}}
		}
		cfg.App.Port = port
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}
