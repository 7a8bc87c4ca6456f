package eightfold

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/scrape/util"
)

const (
	DefaultListPath   = "/api/apply/v2/jobs"
	DefaultDetailPath = "/api/apply/v2/jobs/{id}"
	defaultTimeout    = 30 * time.Second
	maxBodyBytes      = 8 << 20
)

type Config struct {
	BaseURL    string
	Domain     string
	ListPath   string
	DetailPath string // "{id}" is replaced by the position id
	Query      map[string]string
	UserAgent  string
	Token      string // optional, sent as a bearer token
	Timeout    time.Duration
}

// Client reads the paginated positions feed and single position details.
type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
	log     *zap.Logger
	token   atomic.Value // string
}

func New(cfg Config, limiter *util.HostLimiter, log *zap.Logger) *Client {
	if cfg.ListPath == "" {
		cfg.ListPath = DefaultListPath
	}
	if cfg.DetailPath == "" {
		cfg.DetailPath = DefaultDetailPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "jobwatch/1.0 (+local)"
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		log:     log,
	}
	c.token.Store(cfg.Token)
	return c
}

// SetToken replaces the bearer token used by later requests. An empty
// token drops the Authorization header.
func (c *Client) SetToken(token string) { c.token.Store(token) }

func (c *Client) Name() string { return "eightfold" }

// ListURL builds the feed URL for one page.
func (c *Client) ListURL(offset, limit int) string {
	q := url.Values{}
	for k, v := range c.cfg.Query {
		q.Set(k, v)
	}
	if c.cfg.Domain != "" {
		q.Set("domain", c.cfg.Domain)
	}
	q.Set("start", strconv.Itoa(offset))
	q.Set("num", strconv.Itoa(limit))
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.ListPath + "?" + q.Encode()
}

// DetailURL builds the detail URL for one position.
func (c *Client) DetailURL(id int64) string {
	path := strings.ReplaceAll(c.cfg.DetailPath, "{id}", strconv.FormatInt(id, 10))
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if c.cfg.Domain != "" {
		u += "?" + url.Values{"domain": {c.cfg.Domain}}.Encode()
	}
	return u
}

// FetchPage returns up to limit summaries starting at offset. An absent
// positions array yields an empty page, not an error.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]domain.ListingSummary, error) {
	endpoint := c.ListURL(offset, limit)
	c.log.Info("crawling results", zap.Int("start", offset), zap.Int("end", offset+limit))

	var resp positionsResponse
	if err := c.getJSON(ctx, "page", endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.ListingSummary, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		out = append(out, p.summary())
	}
	return out, nil
}

// FetchDetail returns the full posting for id. Any transport, status or
// decode failure comes back as a *FetchError.
func (c *Client) FetchDetail(ctx context.Context, id int64) (*domain.ListingDetail, error) {
	endpoint := c.DetailURL(id)

	var p position
	if err := c.getJSON(ctx, "detail", endpoint, &p); err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, &FetchError{Op: "detail", URL: endpoint, Err: errEmptyPosition}
	}
	return p.detail(endpoint), nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, v any) error {
	if err := c.limiter.WaitURL(ctx, endpoint); err != nil {
		return &FetchError{Op: op, URL: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Op: op, URL: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if tok, _ := c.token.Load().(string); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return &FetchError{Op: op, URL: endpoint, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return &FetchError{Op: op, URL: endpoint, StatusCode: res.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &FetchError{
			Op:         op,
			URL:        endpoint,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("unexpected status body=%s", util.Truncate(string(data), 240)),
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &FetchError{Op: op, URL: endpoint, StatusCode: res.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
