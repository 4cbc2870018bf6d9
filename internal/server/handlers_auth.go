package server

import (
	"encoding/json"
	"net/http"

	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/middleware"
)

// RefreshTokenCookie carries the opaque refresh token, scoped to the auth routes.
const RefreshTokenCookie = "refresh_token"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req imob.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	resp, status, err := s.authService.Login(r.Context(), req, r.Header.Get("User-Agent"), imob.ExtractClientIP(r))
	if err != nil {
		s.auditService.Log(r.Context(), nil, "login_failed", "user", "", r, map[string]interface{}{"email": req.Email})
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.setAuthCookies(w, r, resp.AccessToken, resp.RefreshToken)
	s.auditService.Log(r.Context(), &resp.User.ID, "login", "user", resp.User.ID, r, nil)
	writeJSON(w, status, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "refresh token ausente"})
		return
	}

	resp, status, err := s.authService.Refresh(r.Context(), token, r.Header.Get("User-Agent"), imob.ExtractClientIP(r))
	if err != nil {
		s.clearAuthCookies(w, r)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.setAuthCookies(w, r, resp.AccessToken, resp.RefreshToken)
	writeJSON(w, status, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := refreshTokenFrom(r); token != "" {
		s.authService.Logout(r.Context(), token)
	}

	s.clearAuthCookies(w, r)
	s.auditService.Log(r.Context(), nil, "logout", "user", "", r, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	user, err := s.authService.GetUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "usuário não encontrado"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req imob.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	status, err := s.authService.ChangePassword(r.Context(), userID, req)
	if err != nil {
		s.auditService.Log(r.Context(), &userID, "password_change_failed", "user", userID, r, nil)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	// Every session was revoked; the client must log in again
	s.clearAuthCookies(w, r)
	s.auditService.Log(r.Context(), &userID, "password_changed", "user", userID, r, nil)
	writeJSON(w, status, map[string]string{"message": "senha alterada com sucesso"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	user, err := s.authService.GetUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "usuário não encontrado"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req imob.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	user, status, err := s.authService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "profile_updated", "user", userID, r, nil)
	writeJSON(w, status, user)
}

// ---------- cookie helpers ----------

func (s *Server) setAuthCookies(w http.ResponseWriter, r *http.Request, accessToken, refreshToken string) {
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   s.accessExpiry,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/api/auth",
		MaxAge:   s.refreshExpiry,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthCookies(w http.ResponseWriter, r *http.Request) {
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshTokenFrom reads the refresh token from the cookie or, for non-browser
// clients, from the JSON body.
func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	return body.RefreshToken
}
