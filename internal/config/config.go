package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort     = 38471
	DefaultDBName   = "jobwatch.db"
	DefaultFileName = "config.yml"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Store struct {
		Driver string `yaml:"driver" json:"driver"`
		DSN    string `yaml:"dsn" json:"dsn"`
	} `yaml:"store" json:"store"`

	Feed Feed `yaml:"feed" json:"feed"`

	Polling struct {
		IntervalMinutes int `yaml:"interval_minutes" json:"interval_minutes"`
		Workers         int `yaml:"workers" json:"workers"`
	} `yaml:"polling" json:"polling"`

	Notify struct {
		Title  string `yaml:"title" json:"title"`
		Footer string `yaml:"footer" json:"footer"`
		Events bool   `yaml:"events" json:"events"`
		Log    bool   `yaml:"log" json:"log"`
	} `yaml:"notify" json:"notify"`

	Log struct {
		Level       string `yaml:"level" json:"level"`
		Development bool   `yaml:"development" json:"development"`
	} `yaml:"log" json:"log"`
}

// Feed describes the upstream listing API.
type Feed struct {
	BaseURL               string            `yaml:"base_url" json:"base_url"`
	Domain                string            `yaml:"domain" json:"domain"`
	ListPath              string            `yaml:"list_path" json:"list_path"`
	DetailPath            string            `yaml:"detail_path" json:"detail_path"`
	Query                 map[string]string `yaml:"query" json:"query"`
	PageSize              int               `yaml:"page_size" json:"page_size"`
	PageDelaySeconds      int               `yaml:"page_delay_seconds" json:"page_delay_seconds"`
	RequestTimeoutSeconds int               `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
	MaxPages              int               `yaml:"max_pages" json:"max_pages"`
	RequestsPerSecond     float64           `yaml:"requests_per_second" json:"requests_per_second"`
	Burst                 int               `yaml:"burst" json:"burst"`
	UserAgent             string            `yaml:"user_agent" json:"user_agent"`
	KeyringAccount        string            `yaml:"keyring_account" json:"keyring_account"`
}

// Defaults returns the configuration used for keys absent from the file.
func Defaults() Config {
	var c Config
	c.App.Port = DefaultPort
	c.App.DataDir = "."
	c.Store.Driver = "sqlite"
	c.Feed = Feed{
		ListPath:              "/api/apply/v2/jobs",
		DetailPath:            "/api/apply/v2/jobs/{id}",
		PageSize:              10,
		PageDelaySeconds:      10,
		RequestTimeoutSeconds: 30,
		MaxPages:              1000,
		RequestsPerSecond:     1,
		Burst:                 2,
		UserAgent:             "jobwatch/1.0",
	}
	c.Polling.IntervalMinutes = 10
	c.Polling.Workers = 4
	c.Notify.Title = "New job posting!"
	c.Notify.Footer = "Jump on it while it's still fresh!"
	c.Notify.Events = true
	c.Notify.Log = true
	c.Log.Level = "info"
	return c
}

// Load reads path over the defaults. It does not validate.
func Load(path string) (Config, error) {
	cfg := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// DSN returns the store connection string, defaulting to a SQLite file in
// the data dir.
func (c Config) DSN() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	return filepath.Join(c.App.DataDir, DefaultDBName)
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Polling.IntervalMinutes) * time.Minute
}

func (f Feed) PageDelay() time.Duration {
	return time.Duration(f.PageDelaySeconds) * time.Second
}

func (f Feed) RequestTimeout() time.Duration {
	return time.Duration(f.RequestTimeoutSeconds) * time.Second
}
