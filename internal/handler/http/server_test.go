package http

import (
	"ShortReach-Backend/internal/analytics"
	"ShortReach-Backend/internal/config"
	"ShortReach-Backend/internal/repository/memory"
	"ShortReach-Backend/internal/service"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	server    *Server
	storage   *memory.MemStorage
	links     *service.ShortLinkService
	processor *analytics.Processor
	handler   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	storage := memory.New()
	cfg := &config.ShortLink{
		BaseURL:               "http://sr.test",
		MaxGenerationAttempts: 10,
		DefaultRefreshDays:    90,
		ListLimit:             100,
	}
	links := service.New(storage, nil, cfg, zap.NewNop())

	processor := analytics.NewProcessor(links, zap.NewNop(), analytics.ProcessorConfig{
		WorkerCount:     1,
		BufferSize:      16,
		TrackTimeout:    time.Second,
		ShutdownTimeout: 5 * time.Second,
	})
	require.NoError(t, processor.Start())
	t.Cleanup(func() { _ = processor.Stop() })

	server := NewServer(storage, links, processor, zap.NewNop(), cfg.BaseURL)
	return &testEnv{
		server:    server,
		storage:   storage,
		links:     links,
		processor: processor,
		handler:   server.SetupRoutes(),
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createLink(t *testing.T, body map[string]interface{}) LinkInfo {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/links", bytes.NewReader(payload)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info LinkInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info
}

func TestCreateLinkEndpoint(t *testing.T) {
	env := newTestEnv(t)

	info := env.createLink(t, map[string]interface{}{
		"destination_url": "https://example.com/product/123",
		"owner_id":        "user-1",
		"expires_in_days": 90,
		"entity_id":       "content-42",
		"sub_tag":         "partner-7",
	})

	assert.Equal(t, "https://example.com/product/123", info.DestinationURL)
	assert.Equal(t, "http://sr.test/"+info.Code, info.ShortURL)
	assert.Equal(t, "content-42", info.EntityID)
	assert.NotEmpty(t, info.ExpiresAt)
	assert.True(t, info.IsActive)
}

func TestCreateLinkValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{"bad url", map[string]interface{}{"destination_url": "not a url", "owner_id": "u"}, http.StatusBadRequest},
		{"missing owner", map[string]interface{}{"destination_url": "https://example.com"}, http.StatusBadRequest},
		{"bad custom code", map[string]interface{}{"destination_url": "https://example.com", "owner_id": "u", "custom_code": "x"}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, _ := json.Marshal(tc.body)
			rec := env.do(httptest.NewRequest(http.MethodPost, "/api/links", bytes.NewReader(payload)))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestCreateLinkCustomCodeConflict(t *testing.T) {
	env := newTestEnv(t)

	env.createLink(t, map[string]interface{}{
		"destination_url": "https://example.com",
		"owner_id":        "user-1",
		"custom_code":     "promo1",
	})

	payload, _ := json.Marshal(map[string]interface{}{
		"destination_url": "https://example.com",
		"owner_id":        "user-2",
		"custom_code":     "promo1",
	})
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/links", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRedirectEndpoint(t *testing.T) {
	env := newTestEnv(t)

	info := env.createLink(t, map[string]interface{}{
		"destination_url": "https://example.com/product/123",
		"owner_id":        "user-1",
	})

	req := httptest.NewRequest(http.MethodGet, "/"+info.Code, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; Mobile)")
	rec := env.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/product/123", rec.Header().Get("Location"))

	// The click is tracked asynchronously; Stop drains the queue.
	require.NoError(t, env.processor.Stop())

	stored, err := env.storage.GetLinkByID(context.Background(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ClickCount)
}

func TestRedirectUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/nosuch1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedirectSkipsSystemPaths(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/unknown", "/health/extra"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestListLinksEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.createLink(t, map[string]interface{}{"destination_url": "https://example.com/a", "owner_id": "user-1"})
	env.createLink(t, map[string]interface{}{"destination_url": "https://example.com/b", "owner_id": "user-1"})
	env.createLink(t, map[string]interface{}{"destination_url": "https://example.com/c", "owner_id": "user-2"})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/links?owner_id=user-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListLinksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Links, 2)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/links", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "owner_id is required")
}

func TestListEntityLinksEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.createLink(t, map[string]interface{}{
		"destination_url": "https://example.com/a",
		"owner_id":        "user-1",
		"entity_id":       "content-42",
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/links/entity/content-42", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListLinksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 1)
	assert.Equal(t, "content-42", resp.Links[0].EntityID)
}

func TestDeactivateEndpointIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	info := env.createLink(t, map[string]interface{}{
		"destination_url": "https://example.com",
		"owner_id":        "user-1",
	})

	url := "/api/links/" + itoa(info.ID)
	rec := env.do(httptest.NewRequest(http.MethodDelete, url, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Second delete and unknown id still answer 204.
	rec = env.do(httptest.NewRequest(http.MethodDelete, url, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/links/99999", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Deactivated links no longer redirect.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/"+info.Code, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)

	info := env.createLink(t, map[string]interface{}{
		"destination_url": "https://example.com",
		"owner_id":        "user-1",
	})

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/links/"+itoa(info.ID), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	payload, _ := json.Marshal(RefreshLinkRequest{ExpiresInDays: 30})
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/links/"+itoa(info.ID)+"/refresh", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var refreshed LinkInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.True(t, refreshed.IsActive)
	assert.NotEmpty(t, refreshed.ExpiresAt)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/links/99999/refresh", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpointCounterMode(t *testing.T) {
	env := newTestEnv(t)

	info := env.createLink(t, map[string]interface{}{
		"destination_url": "https://example.com",
		"owner_id":        "user-1",
	})

	env.links.TrackClick(context.Background(), info.ID, service.ClickMetadata{})
	env.links.TrackClick(context.Background(), info.ID, service.ClickMetadata{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/stats/"+itoa(info.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.LinkStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalClicks)
	assert.Equal(t, int64(0), stats.UniqueIPs)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/stats/99999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.DatabaseStatus)
}

func TestExtractIPAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
	req.RemoteAddr = "198.51.100.9:4444"
	assert.Equal(t, "198.51.100.9", extractIPAddress(req))

	req.Header.Set("X-Real-IP", "203.0.113.5")
	assert.Equal(t, "203.0.113.5", extractIPAddress(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	assert.Equal(t, "203.0.113.1", extractIPAddress(req))
}

// failingTracker lets the redirect path run against broken tracking writes.
type failingTracker struct {
	*memory.MemStorage
}

func (f *failingTracker) RecordClick(context.Context, int64, time.Time) error {
	return errors.New("write path down")
}

func TestRedirectSurvivesTrackingFailure(t *testing.T) {
	storage := &failingTracker{MemStorage: memory.New()}
	cfg := &config.ShortLink{BaseURL: "http://sr.test", MaxGenerationAttempts: 10, DefaultRefreshDays: 90, ListLimit: 100}
	links := service.New(storage, nil, cfg, zap.NewNop())

	processor := analytics.NewProcessor(links, zap.NewNop(), analytics.ProcessorConfig{
		WorkerCount: 1, BufferSize: 4, TrackTimeout: time.Second, ShutdownTimeout: 5 * time.Second,
	})
	require.NoError(t, processor.Start())
	defer processor.Stop()

	server := NewServer(storage, links, processor, zap.NewNop(), cfg.BaseURL)
	handler := server.SetupRoutes()

	link, err := links.Create(context.Background(), service.CreateLinkInput{
		DestinationURL: "https://example.com/product/123",
		OwnerID:        "user-1",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+link.Code, nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/product/123", rec.Header().Get("Location"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
