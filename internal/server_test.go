package internal

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"erp-asset-api/internal/auth"
	"erp-asset-api/internal/config"
	"erp-asset-api/internal/models"
	"erp-asset-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSecret = "test-secret-key-that-is-long-enough-for-testing"

type testEnv struct {
	t      *testing.T
	srv    *Server
	store  *testutil.MemStore
	tokens map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      testSecret,
		JWTIssuer:      "test-issuer",
		JWTAudience:    "test-audience",
		JWTExpiry:      time.Hour,
		AllowedOrigins: []string{"http://localhost:3000"},
		RequestTimeout: 5 * time.Second,
		EnableMetrics:  true,
		EnableSwagger:  true,
	}
	store := testutil.NewMemStore()
	env := &testEnv{t: t, srv: NewServer(cfg, store), store: store, tokens: map[string]string{}}

	for name, roles := range map[string][]string{
		"employee": nil,
		"manager":  {auth.RoleAssetManager},
		"admin":    {auth.RoleAdmin},
	} {
		tok, err := env.srv.JWTManager.GenerateToken(name, name+"@example.com", roles)
		require.NoError(t, err)
		env.tokens[name] = tok
	}
	return env
}

// do sends a request as the named user; an empty user sends no token.
func (e *testEnv) do(method, path, user string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[user])
	}
	w := httptest.NewRecorder()
	e.srv.Router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(assetID string) models.Asset {
	laptop := "Laptop"
	return e.store.AddAsset(models.Asset{AssetID: assetID, AssetType: &laptop, Status: models.StatusActive})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode[auth.ErrorResponse](t, w)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = env.do("GET", "/dbping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/assets/{asset_id}/assign")

	w = env.do("GET", "/docs", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/assets", "/history/A-1", "/categories", "/maintenance/A-1"} {
		w := env.do("GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	req := httptest.NewRequest("GET", "/assets", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	env.srv.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTraceIDHeader(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/health", "", nil)
	assert.Len(t, w.Header().Get("X-Trace-Id"), 36)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Trace-Id", "2f1b7c5e-9a43-4d8e-8f0a-1c2d3e4f5a6b")
	rec := httptest.NewRecorder()
	env.srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, "2f1b7c5e-9a43-4d8e-8f0a-1c2d3e4f5a6b", rec.Header().Get("X-Trace-Id"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("OPTIONS", "/assets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.srv.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("OPTIONS", "/assets", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	env.srv.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddCategory(models.Category{Name: "Monitor"})
	env.store.AddCategory(models.Category{Name: "Desktop"})
	env.store.AddCategory(models.Category{Name: "Laptop"})

	w := env.do("GET", "/categories", "employee", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[[]models.Category](t, w)
	require.Len(t, cats, 3)
	assert.Equal(t, "Desktop", cats[0].Name)

	w = env.do("GET", "/categories?skip=1&limit=1", "employee", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats = decode[[]models.Category](t, w)
	require.Len(t, cats, 1)
	assert.Equal(t, "Laptop", cats[0].Name)

	w = env.do("GET", "/categories?skip=-1", "employee", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
}
