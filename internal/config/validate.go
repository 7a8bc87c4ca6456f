package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err returns the errors as a *ValidationError, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return &ValidationError{Problems: v.Errors}
}

// ValidationError is a configuration the engine cannot start with.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Problems, "\n- ")
}

// NormalizeAndValidate trims and fills derived fields and reports problems.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Store.Driver = strings.ToLower(strings.TrimSpace(out.Store.Driver))
	if out.Store.Driver == "" {
		out.Store.Driver = "sqlite"
	}
	out.Feed.BaseURL = strings.TrimRight(strings.TrimSpace(out.Feed.BaseURL), "/")
	out.Feed.Domain = strings.TrimSpace(out.Feed.Domain)
	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))
	if strings.TrimSpace(out.App.DataDir) == "" {
		out.App.DataDir = "."
	}

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Store.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(out.Store.DSN) == "" {
			res.addErr("store.dsn is required when store.driver=postgres")
		}
	default:
		res.addErr("store.driver must be sqlite or postgres, got %q", out.Store.Driver)
	}

	// feed
	if out.Feed.BaseURL == "" {
		res.addErr("feed.base_url is required")
	} else if u, err := url.Parse(out.Feed.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		res.addErr("feed.base_url must be an absolute URL, got %q", out.Feed.BaseURL)
	}
	if out.Feed.Domain == "" {
		res.addWarn("feed.domain is empty; most tenants require it.")
	}
	if !strings.HasPrefix(out.Feed.ListPath, "/") {
		res.addErr("feed.list_path must start with /")
	}
	if !strings.Contains(out.Feed.DetailPath, "{id}") {
		res.addErr("feed.detail_path must contain the {id} placeholder")
	}
	if out.Feed.PageSize <= 0 {
		res.addErr("feed.page_size must be > 0")
	}
	if out.Feed.PageDelaySeconds < 0 {
		res.addErr("feed.page_delay_seconds must be >= 0")
	} else if out.Feed.PageDelaySeconds < 2 {
		res.addWarn("feed.page_delay_seconds is very low (%d) and may trigger rate limits.", out.Feed.PageDelaySeconds)
	}
	if out.Feed.RequestTimeoutSeconds <= 0 {
		res.addErr("feed.request_timeout_seconds must be > 0")
	}
	if out.Feed.MaxPages < 0 {
		res.addErr("feed.max_pages must be >= 0")
	}
	if out.Feed.RequestsPerSecond < 0 {
		res.addErr("feed.requests_per_second must be >= 0")
	} else if out.Feed.RequestsPerSecond == 0 {
		res.addWarn("feed.requests_per_second is 0; detail requests will not be paced.")
	}
	if out.Feed.Burst < 0 {
		res.addErr("feed.burst must be >= 0")
	}

	// polling sanity
	if out.Polling.IntervalMinutes <= 0 {
		res.addErr("polling.interval_minutes must be > 0")
	} else if out.Polling.IntervalMinutes < 2 {
		res.addWarn("polling.interval_minutes is very low (%d); a full crawl may not fit in one interval.", out.Polling.IntervalMinutes)
	}
	if out.Polling.Workers <= 0 {
		res.addErr("polling.workers must be > 0")
	}

	switch out.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		res.addWarn("log.level %q is unknown; using info.", out.Log.Level)
	}

	if !out.Notify.Events && !out.Notify.Log {
		res.addWarn("every notify sink is disabled; new listings will only appear in the store.")
	}

	return out, res
}

// Validate reports whether cfg can be used as is.
func Validate(cfg Config) error {
	_, res := NormalizeAndValidate(cfg)
	return res.Err()
}
