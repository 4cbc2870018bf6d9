package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/murilobento/imobiliaria-sub005/internal/imob"
)

// AccessTokenCookie is the name of the HTTP-only cookie carrying the access JWT.
const AccessTokenCookie = "access_token"

// Auth validates access JWTs from the Authorization header or the access
// token cookie. It sets user ID, email and role in the request context.
type Auth struct {
	authService *imob.AuthService
}

func NewAuth(authService *imob.AuthService) *Auth {
	return &Auth{authService: authService}
}

type contextKey string

const (
	ContextUserID contextKey = "user_id"
	ContextEmail  contextKey = "email"
	ContextRole   contextKey = "role"
)

func (m *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie(AccessTokenCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "não autenticado"})
			return
		}

		claims, err := m.authService.ValidateAccessToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token inválido ou expirado"})
			return
		}

		if claims.Type != "access" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "tipo de token inválido"})
			return
		}

		ctx := r.Context()
		ctx = setContextValue(ctx, ContextUserID, claims.Subject)
		ctx = setContextValue(ctx, ContextEmail, claims.Email)
		ctx = setContextValue(ctx, ContextRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth {
		return ""
	}
	return token
}

// GetUserID extracts the user ID from the request context.
func GetUserID(r *http.Request) string {
	v, _ := r.Context().Value(ContextUserID).(string)
	return v
}

func setContextValue(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// GetRole extracts the user role from the request context.
func GetRole(r *http.Request) string {
	v, _ := r.Context().Value(ContextRole).(string)
	return v
}
