package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/scrape/types"
	"jobwatch-engine/internal/secrets"
	"jobwatch-engine/internal/store"
)

type fakeStore struct {
	listings    []domain.Listing
	lastOpts    store.ListOpts
	checkpoints int
	err         error
}

func (f *fakeStore) List(_ context.Context, opts store.ListOpts) ([]domain.Listing, error) {
	f.lastOpts = opts
	return f.listings, f.err
}

func (f *fakeStore) Counts(context.Context) (int, int, error) {
	return len(f.listings), 0, f.err
}

func (f *fakeStore) Checkpoint(context.Context) error {
	f.checkpoints++
	return f.err
}

func (f *fakeStore) Driver() string { return "sqlite" }

type fakeTrigger struct {
	busy bool
	runs int
}

func (f *fakeTrigger) TryRun() bool {
	if f.busy {
		return false
	}
	f.runs++
	return true
}

func (f *fakeTrigger) Running() bool { return f.busy }

type fixture struct {
	deps    Deps
	store   *fakeStore
	trigger *fakeTrigger
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Defaults()
	cfg.Feed.BaseURL = "https://jobs.example.com"
	cfg.Feed.Domain = "example.com"

	cfgPath := filepath.Join(t.TempDir(), config.DefaultFileName)
	require.NoError(t, config.SaveAtomic(cfgPath, cfg))

	var cfgVal, status atomic.Value
	cfgVal.Store(cfg)
	status.Store(types.ScrapeStatus{LastAdded: 3})

	f := &fixture{store: &fakeStore{}, trigger: &fakeTrigger{}}
	f.deps = Deps{
		Store:        f.store,
		Hub:          events.NewHub(),
		CfgVal:       &cfgVal,
		ScrapeStatus: &status,
		UserCfgPath:  cfgPath,
		LoadCfg:      func() (config.Config, error) { return config.Load(cfgPath) },
		Scheduler:    f.trigger,
	}
	f.handler = Handler(f.deps)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "sqlite", body["driver"])

	f.store.err = errors.New("db gone")
	rec = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	f.store.listings = []domain.Listing{{
		ID: 1, JobID: 42, RequisitionID: "R-1", CanonicalURL: "https://jobs.example.com/1",
		Title: "Engineer", DescriptionText: "text", NoLongerSeen: domain.Bool(true),
	}}

	rec := f.do(http.MethodGet, "/listings?state=all&sort=title&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.ListOpts{State: "all", Sort: "title", Limit: 5}, f.store.lastOpts)

	var out []ListingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "R-1", out[0].RequisitionID)
	assert.True(t, out[0].NoLongerSeen)
	assert.Empty(t, out[0].DescriptionText)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/listings?state=gone", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/listings?limit=x", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, "/listings", "").Code)
}

func TestListingsStoreErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound, "not_found"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "store_error"},
		{"write", &store.WriteError{Op: "update", Err: errors.New("locked")}, http.StatusInternalServerError, "store_error"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "store_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.err = tc.err

			rec := f.do(http.MethodGet, "/listings", "")
			require.Equal(t, tc.want, rec.Code)

			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.RequestID)
		})
	}
}

func TestScrapeRunAndStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/scrape/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.trigger.runs)

	f.trigger.busy = true
	rec = f.do(http.MethodPost, "/scrape/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"ok":false,"msg":"already running"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/scrape/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st types.ScrapeStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.Equal(t, 3, st.LastAdded)
}

func TestConfigRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "example.com", cfg.Feed.Domain)

	cfg.Feed.PageSize = 25
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	rec = f.do(http.MethodPut, "/config", string(b))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25, f.deps.CfgVal.Load().(config.Config).Feed.PageSize)

	cfg.Polling.Workers = 0
	b, err = json.Marshal(cfg)
	require.NoError(t, err)
	rec = f.do(http.MethodPut, "/config", string(b))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var vr config.Validation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vr))
	assert.Contains(t, vr.Errors, "polling.workers must be > 0")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/config", `{"bogus":1}`).Code)

	rec = f.do(http.MethodGet, "/config/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/config/path", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), config.DefaultFileName)
}

func TestSetFeedToken(t *testing.T) {
	f := newFixture(t)

	var gotAccount, gotToken string
	var changes int
	h := SecretsHandler{
		CfgVal: f.deps.CfgVal,
		SetToken: func(a, tok string) error {
			gotAccount, gotToken = a, tok
			return nil
		},
		Changed: func() { changes++ },
	}

	rec := httptest.NewRecorder()
	h.SetFeedToken(rec, httptest.NewRequest(http.MethodPost, "/api/secrets/feed", strings.NewReader(`{"token":"abc"}`)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "abc", gotToken)
	assert.Equal(t, "jobwatch:feed:example.com@jobs.example.com", gotAccount)
	assert.Equal(t, 1, changes)

	rec = httptest.NewRecorder()
	h.SetFeedToken(rec, httptest.NewRequest(http.MethodPost, "/api/secrets/feed", strings.NewReader(`nope`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, changes)
}

func TestDeleteFeedToken(t *testing.T) {
	f := newFixture(t)

	stored := true
	var changes int
	h := SecretsHandler{
		CfgVal: f.deps.CfgVal,
		DeleteToken: func(string) error {
			if !stored {
				return secrets.ErrTokenNotFound
			}
			stored = false
			return nil
		},
		Changed: func() { changes++ },
	}

	rec := httptest.NewRecorder()
	h.DeleteFeedToken(rec, httptest.NewRequest(http.MethodDelete, "/api/secrets/feed", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, changes)

	rec = httptest.NewRecorder()
	h.DeleteFeedToken(rec, httptest.NewRequest(http.MethodDelete, "/api/secrets/feed", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, changes)
}

func TestHealthReportsEventHub(t *testing.T) {
	f := newFixture(t)
	f.deps.Hub.Subscribe()
	f.handler = Handler(f.deps)

	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events struct {
			Subscribers int    `json:"subscribers"`
			Dropped     uint64 `json:"dropped"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Events.Subscribers)
	assert.Equal(t, uint64(0), body.Events.Dropped)
}

func TestCheckpointLoopbackOnly(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/db/checkpoint", "").Code)

	req := httptest.NewRequest(http.MethodPost, "/db/checkpoint", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, f.store.checkpoints)
}

func TestCorsPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/listings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.Contains(t, readData(), `"type":"ping"`)

	require.Eventually(t, func() bool { return f.deps.Hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	f.deps.Hub.Publish(events.MakeEvent("", events.TypeListingCreated, 1, nil))
	assert.Contains(t, readData(), events.TypeListingCreated)
}
