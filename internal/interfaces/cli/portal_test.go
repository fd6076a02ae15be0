package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
	rediscache "github.com/networknext/portal/internal/infrastructure/database/redis"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/internal/interfaces/http/handlers"
	"github.com/networknext/portal/pkg/errors"
)

const portalSecret = "portal-wiring-secret"

// memoryProfiles is an in-memory user.Repository.
type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]user.Profile
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{profiles: map[string]user.Profile{}}
}

func (m *memoryProfiles) GetBySubject(_ context.Context, subject string) (*user.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[subject]
	if !ok {
		return nil, errors.New(errors.ErrCodeProfileNotFound, "no profile for "+subject)
	}
	return &p, nil
}

func (m *memoryProfiles) Upsert(_ context.Context, p *user.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Subject] = *p
	return nil
}

func (m *memoryProfiles) SetCompany(_ context.Context, subject, code, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[subject]
	if !ok {
		return errors.New(errors.ErrCodeProfileNotFound, "no profile for "+subject)
	}
	p.CompanyCode, p.CompanyName = code, name
	m.profiles[subject] = p
	return nil
}

func (m *memoryProfiles) List(_ context.Context, filter user.ListFilter) ([]*user.Profile, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*user.Profile
	for _, p := range m.profiles {
		if filter.CompanyCode != "" && p.CompanyCode != filter.CompanyCode {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

type portalHarness struct {
	handler http.Handler
	store   *rediscache.SessionStore
}

func newPortalHarness(t *testing.T, mutate func(*config.Config)) *portalHarness {
	t.Helper()
	log := logging.NewNopLogger()

	mr := miniredis.RunT(t)
	client, err := rediscache.NewClient(&rediscache.RedisConfig{Addr: mr.Addr()}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Default()
	cfg.Auth.Enabled = true
	cfg.Auth.HMACSecret = portalSecret
	cfg.Metrics.Namespace = "portal_wiring"
	if mutate != nil {
		mutate(cfg)
	}

	tel, err := newTelemetry(cfg.Metrics, log)
	require.NoError(t, err)

	store := newSessionStore(client, cfg, log)
	infra := portalInfra{
		sessions:  store,
		activity:  store,
		cache:     newPortalCache(client, cfg, log),
		profiles:  newMemoryProfiles(),
		checkers:  []handlers.HealthChecker{redisReadiness(client, tel.metrics)},
		telemetry: tel,
	}

	h, stop, err := buildPortalHandler(cfg, infra, log)
	require.NoError(t, err)
	t.Cleanup(stop)
	return &portalHarness{handler: h, store: store}
}

func (h *portalHarness) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, r)
	return w
}

func portalToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":            subject,
		"email":          strings.TrimPrefix(subject, "auth0|") + "@example.com",
		"email_verified": true,
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(portalSecret))
	require.NoError(t, err)
	return signed
}

func TestBuildPortalHandler_DownloadsFromConfig(t *testing.T) {
	h := newPortalHarness(t, func(c *config.Config) {
		c.Portal.SDKVersion = "5.0.1"
		c.Portal.SDKURL = "https://example.com/next-5.0.1.zip"
	})

	w := h.do(t, http.MethodGet, "/downloads", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SDK v5.0.1")
	assert.Contains(t, w.Body.String(), "https://example.com/next-5.0.1.zip")

	w = h.do(t, http.MethodGet, "/portal/downloads", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SDK v5.0.1")
}

func TestBuildPortalHandler_InvalidCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Portal.SDKURL = "javascript:alert(1)"
	tel, err := newTelemetry(cfg.Metrics, logging.NewNopLogger())
	require.NoError(t, err)

	_, _, err = buildPortalHandler(cfg, portalInfra{profiles: newMemoryProfiles(), telemetry: tel}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestBuildPortalHandler_AuthMisconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Enabled = true
	tel, err := newTelemetry(cfg.Metrics, logging.NewNopLogger())
	require.NoError(t, err)

	_, _, err = buildPortalHandler(cfg, portalInfra{profiles: newMemoryProfiles(), telemetry: tel}, logging.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth")
}

func TestBuildPortalHandler_CompanyAssignmentUnlocksLookup(t *testing.T) {
	h := newPortalHarness(t, nil)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, h.store.Record(ctx, session.Entry{
		SessionID: 0x77, UserHash: session.HashUserID("carol"),
		StartTime: now, BuyerCode: "acme", LastUpdate: now,
	}))

	member := portalToken(t, "auth0|dana")
	admin := portalToken(t, "auth0|root", "admin")

	// First login creates the profile without a company.
	w := h.do(t, http.MethodGet, "/portal/user_sessions/carol", member, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPut, "/admin/user_profiles/auth0%7Cdana/company", admin, `{"code":"ACME","name":"Acme Games"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p user.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "acme", p.CompanyCode)

	w = h.do(t, http.MethodPut, "/admin/user_profiles/auth0%7Cdana/company", member, `{"code":"globex","name":"Globex"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodGet, "/portal/user_sessions/carol", member, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0000000000000077")
}

func TestBuildPortalHandler_AuthDisabled(t *testing.T) {
	h := newPortalHarness(t, func(c *config.Config) { c.Auth.Enabled = false })

	w := h.do(t, http.MethodGet, "/portal/user_sessions/carol", portalToken(t, "auth0|root", "admin"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The empty workspace is open to anonymous viewers.
	w = h.do(t, http.MethodGet, "/user-tool", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a User ID to view their sessions.")

	w = h.do(t, http.MethodGet, "/user-tool/carol", "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBuildPortalHandler_ReadinessPublishesPoolStats(t *testing.T) {
	h := newPortalHarness(t, nil)

	w := h.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, config.DefaultMetricsPath, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `portal_wiring_redis_pool_connections{state="total"}`)
	assert.Contains(t, w.Body.String(), "portal_wiring_redis_pool_timeouts 0")
}

func TestBuildPortalHandler_SessionOverview(t *testing.T) {
	h := newPortalHarness(t, func(c *config.Config) { c.Portal.RecentPageSize = 1 })
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	for i, id := range []session.ID{0x31, 0x32} {
		require.NoError(t, h.store.Record(ctx, session.Entry{
			SessionID: id, UserHash: session.HashUserID("carol"),
			StartTime: now.Add(time.Duration(i) * time.Second), BuyerCode: "acme", Next: true, LastUpdate: now,
		}))
	}
	admin := portalToken(t, "auth0|root", "admin")

	w := h.do(t, http.MethodGet, "/portal/session_counts", admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"total_session_count":2,"next_session_count":2}`, w.Body.String())

	w = h.do(t, http.MethodGet, "/portal/sessions/0/10", admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "0000000000000032")
	assert.NotContains(t, w.Body.String(), "0000000000000031", "page clamped to portal.recent_page_size")
}

func TestBuildPortalHandler_MetricsToggle(t *testing.T) {
	h := newPortalHarness(t, nil)
	w := h.do(t, http.MethodGet, config.DefaultMetricsPath, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "portal_wiring_build_info")

	h = newPortalHarness(t, func(c *config.Config) { c.Metrics.Enabled = false })
	w = h.do(t, http.MethodGet, config.DefaultMetricsPath, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
