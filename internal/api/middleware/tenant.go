package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// CRMKey is the context key for the CRM (tenant) the caller acts for.
const CRMKey contextKey = "crm_id"

// TenantExtractor reads the calling CRM from the X-CRM-Id header or the
// crm query parameter. Requests without one are left unscoped.
func TenantExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		crm := strings.TrimSpace(r.Header.Get("X-CRM-Id"))
		if crm == "" {
			crm = strings.TrimSpace(r.URL.Query().Get("crm"))
		}
		if crm == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CRMKey, crm)))
	})
}

// GetCRM returns the CRM id of the request, or "" when unscoped.
func GetCRM(ctx context.Context) string {
	if v, ok := ctx.Value(CRMKey).(string); ok {
		return v
	}
	return ""
}
