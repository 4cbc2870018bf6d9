package imob

import (
	"context"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Log / LogRaw
// ---------------------------------------------------------------------------

// Audit writes must never break the caller, even with no database wired.
func TestAuditLog_NilSafe(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", nil)

	var nilSvc *AuditService
	nilSvc.Log(context.Background(), nil, "login", "user", "", req, nil)

	svc := NewAuditService(nil)
	svc.Log(context.Background(), nil, "login", "user", "", req, map[string]interface{}{"email": "a@b.c"})
	svc.LogRaw(context.Background(), nil, "logout", "user", "", "1.2.3.4", "agent", nil)
}

// ---------------------------------------------------------------------------
// ExtractClientIP
// ---------------------------------------------------------------------------

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		xri  string
		want string
	}{
		{"remote_addr_only", "", "", "203.0.113.7"},
		{"single_xff", "1.2.3.4", "", "1.2.3.4"},
		{"multi_xff_takes_first", "1.2.3.4, 5.6.7.8", "", "1.2.3.4"},
		{"x_real_ip_fallback", "", "9.9.9.9", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = "203.0.113.7:12345"
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if ip := ExtractClientIP(req); ip != tt.want {
				t.Errorf("expected %q, got %q", tt.want, ip)
			}
		})
	}
}
