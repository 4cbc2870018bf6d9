package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/murilobento/imobiliaria-sub005/internal/imob"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const testSecret = "test-secret-long-enough-for-hs256-32chars"

func newTestAuth() *Auth {
	return NewAuth(imob.NewAuthService(nil, testSecret, 900, 2592000, nil))
}

func generateTestToken(secret, userID, email, role, tokenType string, expiry time.Duration) string {
	now := time.Now()
	claims := imob.Claims{
		Email: email,
		Role:  role,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			Issuer:    "imobiliaria",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(secret))
	return signed
}

// ---------------------------------------------------------------------------
// Auth.Middleware
// ---------------------------------------------------------------------------

func TestAuth_ValidBearerToken(t *testing.T) {
	mw := newTestAuth()
	token := generateTestToken(testSecret, "user-123", "test@example.com", "corretor", "access", time.Hour)

	var gotUserID, gotEmail, gotRole string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r)
		gotEmail, _ = r.Context().Value(ContextEmail).(string)
		gotRole = GetRole(r)
		w.WriteHeader(http.StatusOK)
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotUserID != "user-123" {
		t.Errorf("expected user ID 'user-123', got %q", gotUserID)
	}
	if gotEmail != "test@example.com" {
		t.Errorf("expected email 'test@example.com', got %q", gotEmail)
	}
	if gotRole != "corretor" {
		t.Errorf("expected role 'corretor', got %q", gotRole)
	}
}

func TestAuth_ValidCookieToken(t *testing.T) {
	mw := newTestAuth()
	token := generateTestToken(testSecret, "user-456", "cookie@example.com", "admin", "access", time.Hour)

	var gotUserID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r)
		w.WriteHeader(http.StatusOK)
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotUserID != "user-456" {
		t.Errorf("expected user ID 'user-456', got %q", gotUserID)
	}
}

func TestAuth_HeaderTakesPrecedenceOverCookie(t *testing.T) {
	mw := newTestAuth()
	headerToken := generateTestToken(testSecret, "header-user", "h@example.com", "admin", "access", time.Hour)
	cookieToken := generateTestToken(testSecret, "cookie-user", "c@example.com", "admin", "access", time.Hour)

	var gotUserID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+headerToken)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: cookieToken})
	rec := httptest.NewRecorder()

	mw.Middleware(inner).ServeHTTP(rec, req)

	if gotUserID != "header-user" {
		t.Errorf("expected 'header-user', got %q", gotUserID)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	mw := newTestAuth()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["error"] != "não autenticado" {
		t.Errorf("unexpected error message: %q", body["error"])
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	mw := newTestAuth()
	token := generateTestToken(testSecret, "user-123", "test@example.com", "admin", "access", -time.Hour)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	mw := newTestAuth()
	token := generateTestToken("completely-different-secret-32chars!!", "user-123", "test@example.com", "admin", "access", time.Hour)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestAuth_WrongTokenType(t *testing.T) {
	mw := newTestAuth()
	// A refresh-typed JWT must not pass as an access token
	token := generateTestToken(testSecret, "user-123", "test@example.com", "admin", "refresh", time.Hour)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["error"] != "tipo de token inválido" {
		t.Errorf("unexpected error: %q", body["error"])
	}
}

func TestAuth_MalformedToken(t *testing.T) {
	mw := newTestAuth()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer not-a-valid-jwt")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestAuth_NonBearerAuthorizationIgnored(t *testing.T) {
	mw := newTestAuth()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

func TestGetUserID_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if got := GetUserID(req); got != "" {
		t.Errorf("expected empty user ID, got %q", got)
	}
}

func TestSetContextValue_RoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := setContextValue(req.Context(), ContextUserID, "user-abc")
	ctx = setContextValue(ctx, ContextRole, "admin")
	req = req.WithContext(ctx)

	if got := GetUserID(req); got != "user-abc" {
		t.Errorf("expected user ID 'user-abc', got %q", got)
	}
	if got := GetRole(req); got != "admin" {
		t.Errorf("expected role 'admin', got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Content-Type on error responses
// ---------------------------------------------------------------------------

func TestAuth_ErrorResponseContentType(t *testing.T) {
	mw := newTestAuth()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not be called")
	})

	handler := mw.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %q", ct)
	}
}
