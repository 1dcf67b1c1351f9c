package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/israelwong/promediamx/internal/api/middleware"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path string, headers map[string]string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	auth := middleware.NewAPIKeyAuth(nil)
	assert.False(t, auth.Enabled())

	code := serve(auth.Middleware(okHandler()), "/api/v1/task-executions/x", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAPIKeyAuth_BlankKeysIgnored(t *testing.T) {
	auth := middleware.NewAPIKeyAuth([]string{" ", ""})
	assert.False(t, auth.Enabled())
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	auth := middleware.NewAPIKeyAuth([]string{"test-key-1", "test-key-2"})
	assert.True(t, auth.Enabled())
	h := auth.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/agenda/a1/status", map[string]string{"Authorization": "Bearer test-key-1"}))
	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/agenda/a1/status", map[string]string{"X-API-Key": "test-key-2"}))
}

func TestAPIKeyAuth_Rejected(t *testing.T) {
	h := middleware.NewAPIKeyAuth([]string{"valid-key"}).Middleware(okHandler())

	assert.Equal(t, http.StatusUnauthorized, serve(h, "/api/v1/leads/l1/agenda", nil))
	assert.Equal(t, http.StatusUnauthorized, serve(h, "/api/v1/leads/l1/agenda", map[string]string{"Authorization": "Bearer wrong-key"}))
}

func TestAPIKeyAuth_PublicPaths(t *testing.T) {
	h := middleware.NewAPIKeyAuth([]string{"valid-key"}).Middleware(okHandler())
	for _, path := range []string{"/health", "/version"} {
		assert.Equal(t, http.StatusOK, serve(h, path, nil), path)
	}
}

func TestAPIKeyAuth_KeysFixedAtConstruction(t *testing.T) {
	keys := []string{" padded-key "}
	auth := middleware.NewAPIKeyAuth(keys)
	keys[0] = "other-key"
	h := auth.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/x", map[string]string{"X-API-Key": "padded-key"}))
	assert.Equal(t, http.StatusUnauthorized, serve(h, "/api/v1/x", map[string]string{"X-API-Key": "other-key"}))
}

func TestTenantExtractor(t *testing.T) {
	var got string
	h := middleware.TenantExtractor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetCRM(r.Context())
	}))

	serve(h, "/api/v1/x", map[string]string{"X-CRM-Id": "crm-1"})
	assert.Equal(t, "crm-1", got)

	serve(h, "/api/v1/x?crm=crm-2", nil)
	assert.Equal(t, "crm-2", got)

	serve(h, "/api/v1/x", nil)
	assert.Empty(t, got)
}
