package imob

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ValidateAccessToken (pure unit tests -- no database needed)
// ---------------------------------------------------------------------------

func newTestAuthService(secret string, accessExpiry int) *AuthService {
	return &AuthService{
		db:            nil, // not needed for token validation
		jwtSecret:     []byte(secret),
		accessExpiry:  time.Duration(accessExpiry) * time.Second,
		refreshExpiry: 30 * 24 * time.Hour,
	}
}

func TestValidateAccessToken_ValidToken(t *testing.T) {
	secret := "test-secret-that-is-long-enough-32chars"
	svc := newTestAuthService(secret, 900)

	token, err := svc.generateAccessToken("user-123", "corretor@example.com", "corretor")
	if err != nil {
		t.Fatalf("generateAccessToken failed: %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Errorf("expected subject 'user-123', got %q", claims.Subject)
	}
	if claims.Email != "corretor@example.com" {
		t.Errorf("expected email 'corretor@example.com', got %q", claims.Email)
	}
	if claims.Role != "corretor" {
		t.Errorf("expected role 'corretor', got %q", claims.Role)
	}
	if claims.Type != "access" {
		t.Errorf("expected type 'access', got %q", claims.Type)
	}
	if claims.Issuer != "imobiliaria" {
		t.Errorf("expected issuer 'imobiliaria', got %q", claims.Issuer)
	}
}

func TestValidateAccessToken_ExpiredToken(t *testing.T) {
	secret := "test-secret-that-is-long-enough-32chars"
	// Negative expiry so the token is already expired
	svc := &AuthService{
		jwtSecret:    []byte(secret),
		accessExpiry: -1 * time.Hour,
	}

	token, err := svc.generateAccessToken("user-123", "user@example.com", "admin")
	if err != nil {
		t.Fatalf("generateAccessToken failed: %v", err)
	}

	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	svc1 := newTestAuthService("secret-one-that-is-long-enough-32", 900)
	svc2 := newTestAuthService("secret-two-that-is-long-enough-32", 900)

	token, err := svc1.generateAccessToken("user-123", "user@example.com", "admin")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc2.ValidateAccessToken(token); err == nil {
		t.Fatal("expected error when validating token with wrong secret")
	}
}

func TestValidateAccessToken_MalformedToken(t *testing.T) {
	svc := newTestAuthService("test-secret-that-is-long-enough-32chars", 900)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt-at-all"},
		{"partial", "eyJhbGciOiJIUzI1NiJ9."},
		{"three_dots", "a.b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateAccessToken(tt.token); err == nil {
				t.Fatal("expected error for malformed token")
			}
		})
	}
}

func TestValidateAccessToken_WrongIssuer(t *testing.T) {
	secret := "test-secret-that-is-long-enough-32chars"
	claims := Claims{
		Email: "user@example.com",
		Role:  "admin",
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	svc := newTestAuthService(secret, 900)
	if _, err := svc.ValidateAccessToken(tokenStr); err == nil {
		t.Fatal("expected error for token from a different issuer")
	}
}

func TestValidateAccessToken_NonHMACSigningMethod(t *testing.T) {
	claims := Claims{
		Email: "user@example.com",
		Role:  "admin",
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenStr, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to create none-signed token: %v", err)
	}

	svc := newTestAuthService("test-secret-that-is-long-enough-32chars", 900)
	_, err = svc.ValidateAccessToken(tokenStr)
	if err == nil {
		t.Fatal("expected error for none signing method")
	}
	if !strings.Contains(err.Error(), "signing method") {
		t.Fatalf("expected 'signing method' in error, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// generateAccessToken (internal)
// ---------------------------------------------------------------------------

func TestGenerateAccessToken_ContainsExpectedClaims(t *testing.T) {
	secret := "test-secret-that-is-long-enough-32chars"
	svc := newTestAuthService(secret, 7200)

	before := time.Now().Add(-time.Second) // JWT iat has second-level precision
	tokenStr, err := svc.generateAccessToken("uid-abc", "test@test.com", "admin")
	if err != nil {
		t.Fatal(err)
	}
	after := time.Now().Add(time.Second)

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	claims := parsed.Claims.(*Claims)

	if claims.Subject != "uid-abc" {
		t.Errorf("subject: got %q, want %q", claims.Subject, "uid-abc")
	}
	if claims.Role != "admin" {
		t.Errorf("role: got %q, want %q", claims.Role, "admin")
	}
	if claims.Type != "access" {
		t.Errorf("type: got %q, want %q", claims.Type, "access")
	}

	iat := claims.IssuedAt.Time
	if iat.Before(before) || iat.After(after) {
		t.Errorf("issued_at %v not in expected range [%v, %v]", iat, before, after)
	}

	expectedExpiry := iat.Add(7200 * time.Second)
	exp := claims.ExpiresAt.Time
	diff := exp.Sub(expectedExpiry)
	if diff < -time.Second || diff > time.Second {
		t.Errorf("expiry %v not close to expected %v (diff=%v)", exp, expectedExpiry, diff)
	}
}

// ---------------------------------------------------------------------------
// splitRefreshToken
// ---------------------------------------------------------------------------

func TestSplitRefreshToken(t *testing.T) {
	validID := uuid.NewString()

	tests := []struct {
		name       string
		token      string
		wantOK     bool
		wantID     string
		wantSecret string
	}{
		{"valid", validID + ".abc123secret", true, validID, "abc123secret"},
		{"secret_with_dots", validID + ".ab.cd", true, validID, "ab.cd"},
		{"empty", "", false, "", ""},
		{"no_separator", "justonepart", false, "", ""},
		{"empty_session_id", ".secret", false, "", ""},
		{"empty_secret", validID + ".", false, "", ""},
		{"non_uuid_session_id", "not-a-uuid.secret", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, ok := splitRefreshToken(tt.token)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if id != tt.wantID {
				t.Errorf("sessionID: got %q, want %q", id, tt.wantID)
			}
			if secret != tt.wantSecret {
				t.Errorf("secret: got %q, want %q", secret, tt.wantSecret)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Session revocation
// ---------------------------------------------------------------------------

// Rotation and logout must only revoke sessions that are still active.
// Without the guard two concurrent refreshes of the same token would both
// succeed and reuse detection would never fire.
func TestSessionRevocation_OnlyTouchesActiveRows(t *testing.T) {
	for _, q := range []string{sqlRevokeSession, sqlRevokeFamily} {
		if !strings.Contains(q, "revoked_at IS NULL") {
			t.Errorf("revocation statement missing active-row guard: %s", q)
		}
	}
}

// ---------------------------------------------------------------------------
// Lockout decision
// ---------------------------------------------------------------------------

func TestLockoutActive(t *testing.T) {
	recent := time.Now().Add(-5 * time.Minute)
	expired := time.Now().Add(-20 * time.Minute)

	tests := []struct {
		name     string
		count    int
		lockedAt *time.Time
		want     bool
	}{
		{"below_threshold", 3, &recent, false},
		{"at_threshold_recent", 5, &recent, true},
		{"above_threshold_recent", 7, &recent, true},
		{"at_threshold_expired", 5, &expired, false},
		{"counted_but_never_locked", 5, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lockoutActive(tt.count, tt.lockedAt); got != tt.want {
				t.Errorf("lockoutActive(%d, %v) = %v, want %v", tt.count, tt.lockedAt, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Login validation (no DB calls, just input validation)
// ---------------------------------------------------------------------------

func TestLogin_ValidationErrors(t *testing.T) {
	svc := newTestAuthService("test-secret-that-is-long-enough-32chars", 900)

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"empty_email", LoginRequest{Email: "", Password: "password123"}},
		{"empty_password", LoginRequest{Email: "test@test.com", Password: ""}},
		{"both_empty", LoginRequest{Email: "", Password: ""}},
		{"whitespace_email", LoginRequest{Email: "   ", Password: "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := svc.Login(context.Background(), tt.req, "test-agent", "127.0.0.1")
			if err == nil {
				t.Fatal("expected error")
			}
			if status != 400 {
				t.Errorf("expected status 400, got %d", status)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Claims type checks
// ---------------------------------------------------------------------------

func TestClaims_ImplementsClaims(t *testing.T) {
	var _ jwt.Claims = &Claims{}
}
