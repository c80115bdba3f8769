package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leadforge/leadforge/internal/audit"
	"github.com/leadforge/leadforge/internal/config"
	"github.com/leadforge/leadforge/internal/lead"
	notifymem "github.com/leadforge/leadforge/internal/notify/memory"
	"github.com/leadforge/leadforge/internal/pipeline"
	"github.com/leadforge/leadforge/internal/scoring"
	"github.com/leadforge/leadforge/internal/scrape"
	"github.com/leadforge/leadforge/internal/scrape/ratelimit"
	"github.com/leadforge/leadforge/internal/storage/memory"
)

const stubPage = `<html lang="en"><head><title>Bright Smile Dental</title></head>
<body><h1 class="company-name">Bright Smile Dental</h1><main>Family dental
practice offering invisalign clear aligners, teeth whitening, and same day
crowns for patients of all ages across the metro region.</main></body></html>`

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return []byte(stubPage), nil
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("id-%d", g.n.Add(1)), nil
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	clock := fixedClock{}
	ids := &seqIDs{}
	limiter := ratelimit.New(ratelimit.Config{Budget: 10000, Window: time.Minute})
	t.Cleanup(limiter.Stop)

	scraper := scrape.NewScraper(
		stubFetcher{},
		scrape.NewExtractor(),
		limiter,
		audit.NewMemory(),
		nil,
		clock,
		ids,
		scrape.ScraperConfig{},
		zap.NewNop(),
	)
	engine := scoring.NewEngine(store, store, store, clock, zap.NewNop())
	pl := pipeline.New(scraper, engine, store, store, notifymem.NewPublisher(), pipeline.NewRegistry(), clock, ids, zap.NewNop())

	if cfg.Server.TimeoutSeconds == 0 {
		cfg.Server.TimeoutSeconds = 60
	}
	return NewServer(pl, scraper, engine, store, store, cfg, zap.NewNop()), store
}

func seedCampaign(store *memory.Store) {
	store.PutModel(lead.ScoringModel{
		ID: "model-1",
		Criteria: []lead.ScoringCriterion{
			{ID: "c1", Type: lead.CriterionKeyword, SearchTerms: []string{"invisalign"}, Weight: 100},
		},
	})
	store.PutCampaign(lead.Campaign{ID: "camp-1", ScoringModelID: "model-1"})
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{})
	rec, payload := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", payload["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestScrapeURLEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{})
	rec, payload := doJSON(t, srv.Handler(), http.MethodPost, "/v1/scrape",
		`{"url":"brightsmile.example.com","industry":"dental"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	result, ok := payload["result"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, result["success"])
	require.Equal(t, "https://brightsmile.example.com", result["url"])
}

func TestScrapeURLEndpointRejectsMissingURL(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{})
	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/scrape", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeBatchEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{})
	rec, payload := doJSON(t, srv.Handler(), http.MethodPost, "/v1/scrape/batch",
		`{"urls":["a.example.com","b.example.com"],"industry":"dental"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	job, ok := payload["job"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "completed", job["status"])
	require.Len(t, job["results"], 2)
}

func TestPipelineJobEndpoints(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, config.Config{})
	seedCampaign(store)

	rec, payload := doJSON(t, srv.Handler(), http.MethodPost, "/v1/pipeline/jobs",
		`{"urls":["brightsmile.example.com"],"campaign_id":"camp-1","industry":"dental"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	job, ok := payload["job"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "completed", job["status"])
	jobID, _ := job["id"].(string)
	require.NotEmpty(t, jobID)

	rec, payload = doJSON(t, srv.Handler(), http.MethodGet, "/v1/pipeline/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	fetched, ok := payload["job"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, jobID, fetched["id"])
}

func TestPipelineJobValidation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{})
	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/pipeline/jobs",
		`{"urls":[],"campaign_id":"camp-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineJobNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{})
	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/v1/pipeline/jobs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScoreCampaignRequiresModel(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, config.Config{})
	store.PutCampaign(lead.Campaign{ID: "camp-1"})

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/campaigns/camp-1/score", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetLeadNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{})
	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/v1/leads/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestLogCarriesRequestID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)

	store := memory.NewStore()
	clock := fixedClock{}
	ids := &seqIDs{}
	limiter := ratelimit.New(ratelimit.Config{Budget: 10000, Window: time.Minute})
	t.Cleanup(limiter.Stop)

	scraper := scrape.NewScraper(
		stubFetcher{}, scrape.NewExtractor(), limiter, audit.NewMemory(),
		nil, clock, ids, scrape.ScraperConfig{}, zap.NewNop(),
	)
	engine := scoring.NewEngine(store, store, store, clock, zap.NewNop())
	pl := pipeline.New(scraper, engine, store, store, notifymem.NewPublisher(), pipeline.NewRegistry(), clock, ids, zap.NewNop())

	cfg := config.Config{}
	cfg.Server.TimeoutSeconds = 60
	srv := NewServer(pl, scraper, engine, store, store, cfg, zap.New(core))

	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	headerID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, headerID)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	require.Equal(t, headerID, entries[0].ContextMap()["request_id"])
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	srv, _ := newTestServer(t, cfg)

	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	out := httptest.NewRecorder()
	srv.Handler().ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
}
