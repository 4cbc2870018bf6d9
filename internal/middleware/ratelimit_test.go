package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// RateLimiter.Allow
// ---------------------------------------------------------------------------

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 5, false)

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 3, false) // effectively no refill during the test

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("10.0.0.2"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.Allow("10.0.0.2"); ok {
		t.Fatal("request beyond burst should be blocked")
	}
}

func TestRateLimiter_SeparateBucketsPerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, false)

	if ok, _ := rl.Allow("10.0.0.3"); !ok {
		t.Fatal("first request from IP A should be allowed")
	}
	if ok, _ := rl.Allow("10.0.0.3"); ok {
		t.Fatal("second request from IP A should be blocked")
	}
	if ok, _ := rl.Allow("10.0.0.4"); !ok {
		t.Fatal("first request from IP B should be allowed")
	}
}

func TestRateLimiter_DeniedWaitReflectsRefillRate(t *testing.T) {
	rl := NewRateLimiter(0.5, 1, false) // one token every two seconds

	if ok, _ := rl.Allow("10.0.0.5"); !ok {
		t.Fatal("first request should be allowed")
	}
	ok, wait := rl.Allow("10.0.0.5")
	if ok {
		t.Fatal("second request should be blocked")
	}
	if wait.Seconds() <= 1 || wait.Seconds() > 2 {
		t.Errorf("expected refill wait near 2s, got %v", wait)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestRateLimiter_Middleware429(t *testing.T) {
	rl := NewRateLimiter(0.5, 1, false)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rl.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.50:54321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	// One token every two seconds and an empty bucket: ceil of the wait is 2
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After '2', got %q", got)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON error body, got Content-Type %q", rec.Header().Get("Content-Type"))
	}
}

// ---------------------------------------------------------------------------
// ClientIP
// ---------------------------------------------------------------------------

func TestClientIP_RemoteAddrOnly(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "203.0.113.7:12345"
	// Spoofed header must be ignored when the proxy is not trusted
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	if ip := rl.ClientIP(req); ip != "203.0.113.7" {
		t.Errorf("expected '203.0.113.7', got %q", ip)
	}
}

func TestClientIP_TrustProxy(t *testing.T) {
	rl := NewRateLimiter(1, 1, true)

	tests := []struct {
		name string
		xff  string
		xri  string
		want string
	}{
		{"single_xff", "1.2.3.4", "", "1.2.3.4"},
		{"multi_xff_takes_first", "1.2.3.4, 5.6.7.8", "", "1.2.3.4"},
		{"x_real_ip_fallback", "", "9.9.9.9", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = "203.0.113.7:12345"
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if ip := rl.ClientIP(req); ip != tt.want {
				t.Errorf("expected %q, got %q", tt.want, ip)
			}
		})
	}
}
