package imob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxLoginFailures = 5
	lockoutDuration  = 15 * time.Minute

	tokenIssuer = "imobiliaria"
)

// Revocation statements guard on revoked_at so concurrent rotations of the
// same refresh token cannot both succeed.
const (
	sqlRevokeSession = `UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	sqlRevokeFamily  = `UPDATE sessions SET revoked_at = NOW() WHERE family_id = $1 AND revoked_at IS NULL`
)

type AuthService struct {
	db            *pgxpool.Pool
	jwtSecret     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	audit         *AuditService
}

func NewAuthService(db *pgxpool.Pool, jwtSecret string, accessExpiry, refreshExpiry int, audit *AuditService) *AuthService {
	return &AuthService{
		db:            db,
		jwtSecret:     []byte(jwtSecret),
		accessExpiry:  time.Duration(accessExpiry) * time.Second,
		refreshExpiry: time.Duration(refreshExpiry) * time.Second,
		audit:         audit,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nome      string    `json:"nome"`
	Telefone  *string   `json:"telefone"`
	Role      string    `json:"role"`
	Ativo     bool      `json:"ativo"`
	CreatedAt time.Time `json:"created_at"`
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// dummyHash is a pre-computed bcrypt hash used for timing-safe login.
// When the user is not found, we still run bcrypt comparison to prevent timing attacks.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-safe-dummy-password-placeholder"), 12)

// Login authenticates a user and opens a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, userAgent, ip string) (*AuthResponse, int, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("email e senha são obrigatórios")
	}

	locked, err := s.isLockedOut(ctx, email)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("check lockout: %w", err)
	}
	if locked {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password)) // timing-safe
		return nil, http.StatusTooManyRequests, fmt.Errorf("conta temporariamente bloqueada, tente novamente mais tarde")
	}

	var u User
	var passwordHash string
	err = s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, nome, telefone, role, ativo, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &passwordHash, &u.Nome, &u.Telefone, &u.Role, &u.Ativo, &u.CreatedAt)
	if err != nil {
		// Timing-safe: always run bcrypt even if the user doesn't exist
		bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		s.recordFailure(ctx, email, userAgent, ip)
		return nil, http.StatusUnauthorized, fmt.Errorf("credenciais inválidas")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		s.recordFailure(ctx, email, userAgent, ip)
		return nil, http.StatusUnauthorized, fmt.Errorf("credenciais inválidas")
	}

	if !u.Ativo {
		return nil, http.StatusForbidden, fmt.Errorf("usuário desativado")
	}

	s.clearFailures(ctx, email)

	familyID := uuid.NewString()
	refreshToken, err := s.openSession(ctx, u.ID, familyID, userAgent, ip)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("open session: %w", err)
	}

	accessToken, err := s.generateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("generate token: %w", err)
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessExpiry.Seconds()),
		User:         u,
	}, http.StatusOK, nil
}

// Refresh rotates a refresh token. The old session is revoked and a new one
// is opened in the same family. Reuse of an already-rotated token revokes the
// whole family.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (*AuthResponse, int, error) {
	sessionID, secret, ok := splitRefreshToken(refreshToken)
	if !ok {
		return nil, http.StatusUnauthorized, fmt.Errorf("refresh token inválido")
	}

	var userID, familyID, tokenHash string
	var expiresAt time.Time
	var revokedAt *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT user_id, family_id, refresh_token_hash, expires_at, revoked_at
		FROM sessions WHERE id = $1
	`, sessionID).Scan(&userID, &familyID, &tokenHash, &expiresAt, &revokedAt)
	if err != nil {
		return nil, http.StatusUnauthorized, fmt.Errorf("refresh token inválido")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(secret)); err != nil {
		return nil, http.StatusUnauthorized, fmt.Errorf("refresh token inválido")
	}

	if revokedAt != nil {
		// Token already rotated: likely theft. Kill every session in the family.
		s.db.Exec(ctx, sqlRevokeFamily, familyID)
		s.audit.LogRaw(ctx, &userID, "refresh_reuse", "session", sessionID, ip, userAgent, nil)
		return nil, http.StatusUnauthorized, fmt.Errorf("refresh token inválido")
	}

	if time.Now().After(expiresAt) {
		return nil, http.StatusUnauthorized, fmt.Errorf("sessão expirada")
	}

	var u User
	err = s.db.QueryRow(ctx, `
		SELECT id, email, nome, telefone, role, ativo, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.Nome, &u.Telefone, &u.Role, &u.Ativo, &u.CreatedAt)
	if err != nil {
		return nil, http.StatusUnauthorized, fmt.Errorf("usuário não encontrado")
	}
	if !u.Ativo {
		return nil, http.StatusForbidden, fmt.Errorf("usuário desativado")
	}

	tag, err := s.db.Exec(ctx, sqlRevokeSession, sessionID)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// A concurrent refresh rotated this session between the read above
		// and the revoke. Same treatment as reuse.
		s.db.Exec(ctx, sqlRevokeFamily, familyID)
		s.audit.LogRaw(ctx, &userID, "refresh_reuse", "session", sessionID, ip, userAgent, nil)
		return nil, http.StatusUnauthorized, fmt.Errorf("refresh token inválido")
	}

	newRefresh, err := s.openSession(ctx, u.ID, familyID, userAgent, ip)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("open session: %w", err)
	}

	accessToken, err := s.generateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("generate token: %w", err)
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    int(s.accessExpiry.Seconds()),
		User:         u,
	}, http.StatusOK, nil
}

// Logout revokes the session identified by the refresh token. Missing or
// malformed tokens are not an error: the cookies get cleared either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	sessionID, secret, ok := splitRefreshToken(refreshToken)
	if !ok {
		return
	}

	var tokenHash string
	err := s.db.QueryRow(ctx, `SELECT refresh_token_hash FROM sessions WHERE id = $1`, sessionID).Scan(&tokenHash)
	if err != nil {
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(secret)) != nil {
		return
	}

	s.db.Exec(ctx, sqlRevokeSession, sessionID)
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, email, nome, telefone, role, ativo, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.Nome, &u.Telefone, &u.Role, &u.Ativo, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type UpdateProfileRequest struct {
	Nome     string  `json:"nome"`
	Telefone *string `json:"telefone"`
}

// UpdateProfile updates the caller's own profile. Email and role are immutable here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*User, int, error) {
	nome := strings.TrimSpace(req.Nome)
	if nome == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("nome é obrigatório")
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE users SET nome = $1, telefone = $2, updated_at = NOW() WHERE id = $3
	`, nome, req.Telefone, userID)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, http.StatusNotFound, fmt.Errorf("usuário não encontrado")
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("reload user: %w", err)
	}
	return u, http.StatusOK, nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword updates a user's password and revokes every open session,
// forcing re-login everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) (int, error) {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return http.StatusBadRequest, fmt.Errorf("current_password e new_password são obrigatórios")
	}
	if len(req.NewPassword) < 8 {
		return http.StatusBadRequest, fmt.Errorf("nova senha deve ter pelo menos 8 caracteres")
	}

	var passwordHash string
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&passwordHash)
	if err != nil {
		return http.StatusNotFound, fmt.Errorf("usuário não encontrado")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.CurrentPassword)); err != nil {
		return http.StatusUnauthorized, fmt.Errorf("senha atual incorreta")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), 12)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, string(newHash), userID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("update password: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("revoke sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return http.StatusInternalServerError, fmt.Errorf("commit: %w", err)
	}

	return http.StatusOK, nil
}

// IsAdmin checks if a user has the admin role.
func (s *AuthService) IsAdmin(ctx context.Context, userID string) bool {
	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND ativo`, userID).Scan(&role)
	if err != nil {
		return false
	}
	return role == "admin"
}

// EnsureAdmin creates the bootstrap admin user from env vars if it doesn't exist.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var existingID string
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&existingID)
	if err == nil {
		// User exists, ensure admin role and active flag
		_, err = s.db.Exec(ctx, `UPDATE users SET role = 'admin', ativo = TRUE WHERE id = $1`, existingID)
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO users (email, password_hash, nome, role)
		VALUES ($1, $2, $3, 'admin')
	`, email, string(hash), "Administrador")
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// ClearLockouts removes login lockout rows. Empty email clears all.
func (s *AuthService) ClearLockouts(ctx context.Context, email string) (int64, error) {
	if email != "" {
		tag, err := s.db.Exec(ctx, `DELETE FROM login_lockouts WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM login_lockouts`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeStaleLockouts drops lockout rows untouched for over an hour. The
// scheduler calls this so abandoned lockouts don't accumulate.
func (s *AuthService) PurgeStaleLockouts(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM login_lockouts WHERE updated_at < NOW() - INTERVAL '1 hour'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ValidateAccessToken verifies an access JWT and returns the claims.
func (s *AuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ---------- internals ----------

func (s *AuthService) generateAccessToken(userID, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// openSession inserts a session row and returns the opaque refresh token
// ("<sessionID>.<secret>"). Only a bcrypt hash of the secret is stored.
func (s *AuthService) openSession(ctx context.Context, userID, familyID, userAgent, ip string) (string, error) {
	secret, err := GenerateRandomPassword(48)
	if err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 12)
	if err != nil {
		return "", fmt.Errorf("hash refresh secret: %w", err)
	}

	var sessionID string
	err = s.db.QueryRow(ctx, `
		INSERT INTO sessions (user_id, refresh_token_hash, family_id, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, string(hash), familyID, userAgent, ip, time.Now().Add(s.refreshExpiry)).Scan(&sessionID)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	return sessionID + "." + secret, nil
}

func splitRefreshToken(token string) (sessionID, secret string, ok bool) {
	idx := strings.IndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return "", "", false
	}
	sessionID, secret = token[:idx], token[idx+1:]
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", "", false
	}
	return sessionID, secret, true
}

func (s *AuthService) isLockedOut(ctx context.Context, email string) (bool, error) {
	var count int
	var lockedAt *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT failed_count, locked_at FROM login_lockouts WHERE email = $1
	`, email).Scan(&count, &lockedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lockout lookup: %w", err)
	}

	if lockoutActive(count, lockedAt) {
		return true, nil
	}
	if count >= maxLoginFailures {
		// Lock expired, reset
		s.db.Exec(ctx, `DELETE FROM login_lockouts WHERE email = $1`, email)
	}
	return false, nil
}

// lockoutActive reports whether a lockout row still blocks logins.
func lockoutActive(count int, lockedAt *time.Time) bool {
	return count >= maxLoginFailures && lockedAt != nil && time.Since(*lockedAt) < lockoutDuration
}

func (s *AuthService) recordFailure(ctx context.Context, email, userAgent, ip string) {
	var count int
	err := s.db.QueryRow(ctx, `
		INSERT INTO login_lockouts (email, failed_count, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (email) DO UPDATE
		SET failed_count = login_lockouts.failed_count + 1, updated_at = NOW()
		RETURNING failed_count
	`, email).Scan(&count)
	if err != nil {
		return
	}
	if count >= maxLoginFailures {
		s.db.Exec(ctx, `UPDATE login_lockouts SET locked_at = NOW() WHERE email = $1 AND locked_at IS NULL`, email)
		s.audit.LogRaw(ctx, nil, "login_lockout", "user", "", ip, userAgent, map[string]interface{}{"email": email})
	}
}

func (s *AuthService) clearFailures(ctx context.Context, email string) {
	s.db.Exec(ctx, `DELETE FROM login_lockouts WHERE email = $1`, email)
}
