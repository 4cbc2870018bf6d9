package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/murilobento/imobiliaria-sub005/internal/config"
	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/middleware"
)

type Server struct {
	mux            *http.ServeMux
	authService    *imob.AuthService
	imovelService  *imob.ImovelService
	cidadeService  *imob.CidadeService
	clienteService *imob.ClienteService
	notifService   *imob.NotificacaoService
	auditService   *imob.AuditService
	adminService   *imob.AdminService
	storageService *imob.StorageService
	auth           *middleware.Auth
	authLimiter    *middleware.RateLimiter // strict class for auth endpoints
	apiLimiter     *middleware.RateLimiter // general class for API endpoints
	db             *pgxpool.Pool
	uploadMaxBytes int64
	accessExpiry   int
	refreshExpiry  int
}

func New(
	cfg *config.Config,
	authService *imob.AuthService,
	imovelService *imob.ImovelService,
	cidadeService *imob.CidadeService,
	clienteService *imob.ClienteService,
	notifService *imob.NotificacaoService,
	auditService *imob.AuditService,
	adminService *imob.AdminService,
	storageService *imob.StorageService,
	db *pgxpool.Pool,
) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		authService:    authService,
		imovelService:  imovelService,
		cidadeService:  cidadeService,
		clienteService: clienteService,
		notifService:   notifService,
		auditService:   auditService,
		adminService:   adminService,
		storageService: storageService,
		auth:           middleware.NewAuth(authService),
		authLimiter:    middleware.NewRateLimiter(float64(cfg.AuthRatePerSecond), cfg.AuthRateBurst, cfg.TrustProxy),
		apiLimiter:     middleware.NewRateLimiter(float64(cfg.APIRatePerSecond), cfg.APIRateBurst, cfg.TrustProxy),
		db:             db,
		uploadMaxBytes: int64(cfg.UploadMaxSizeMB) * 1024 * 1024,
		accessExpiry:   cfg.AccessTokenExpiry,
		refreshExpiry:  cfg.RefreshTokenExpiry,
	}

	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return securityHeaders(cors(s.mux))
}

// securityHeaders adds security headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// HSTS only makes sense behind TLS
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// maxBody limits request body size to prevent DoS via large payloads.
func maxBody(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	// Health check with DB ping
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unreachable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Auth (no JWT required, tightly rate-limited)
	s.mux.Handle("POST /api/auth/login", s.authLimiter.Middleware(maxBody(http.HandlerFunc(s.handleLogin), 1<<20)))
	s.mux.Handle("POST /api/auth/refresh", s.authLimiter.Middleware(maxBody(http.HandlerFunc(s.handleRefresh), 1<<20)))
	s.mux.Handle("POST /api/auth/logout", s.authLimiter.Middleware(maxBody(http.HandlerFunc(s.handleLogout), 1<<20)))

	// Auth (JWT required)
	s.mux.Handle("GET /api/auth/me", s.protected(http.HandlerFunc(s.handleMe)))
	s.mux.Handle("PUT /api/auth/password", s.protected(maxBody(http.HandlerFunc(s.handleChangePassword), 1<<20)))

	// Profile
	s.mux.Handle("GET /api/profile", s.protected(http.HandlerFunc(s.handleGetProfile)))
	s.mux.Handle("PUT /api/profile", s.protected(maxBody(http.HandlerFunc(s.handleUpdateProfile), 1<<20)))

	// Imóveis
	s.mux.Handle("GET /api/imoveis", s.protected(http.HandlerFunc(s.handleListImoveis)))
	s.mux.Handle("POST /api/imoveis", s.protected(maxBody(http.HandlerFunc(s.handleCreateImovel), 1<<20)))
	s.mux.Handle("GET /api/imoveis/{id}", s.protected(http.HandlerFunc(s.handleGetImovel)))
	s.mux.Handle("PUT /api/imoveis/{id}", s.protected(maxBody(http.HandlerFunc(s.handleUpdateImovel), 1<<20)))
	s.mux.Handle("DELETE /api/imoveis/{id}", s.protected(http.HandlerFunc(s.handleDeleteImovel)))

	// Imóvel images (multipart upload)
	s.mux.Handle("POST /api/imoveis/{id}/imagens", s.protected(maxBody(http.HandlerFunc(s.handleUploadImagem), s.uploadMaxBytes)))
	s.mux.Handle("PUT /api/imoveis/{id}/imagens/{imageId}/principal", s.protected(http.HandlerFunc(s.handleSetImagemPrincipal)))
	s.mux.Handle("DELETE /api/imoveis/{id}/imagens/{imageId}", s.protected(http.HandlerFunc(s.handleDeleteImagem)))

	// Cidades
	s.mux.Handle("GET /api/cidades", s.protected(http.HandlerFunc(s.handleListCidades)))
	s.mux.Handle("POST /api/cidades", s.protected(maxBody(http.HandlerFunc(s.handleCreateCidade), 1<<20)))
	s.mux.Handle("GET /api/cidades/{id}", s.protected(http.HandlerFunc(s.handleGetCidade)))
	s.mux.Handle("PUT /api/cidades/{id}", s.protected(maxBody(http.HandlerFunc(s.handleUpdateCidade), 1<<20)))
	s.mux.Handle("DELETE /api/cidades/{id}", s.protected(s.adminOnly(http.HandlerFunc(s.handleDeleteCidade))))

	// Clientes
	s.mux.Handle("GET /api/clientes", s.protected(http.HandlerFunc(s.handleListClientes)))
	s.mux.Handle("POST /api/clientes", s.protected(maxBody(http.HandlerFunc(s.handleCreateCliente), 1<<20)))
	s.mux.Handle("GET /api/clientes/{id}", s.protected(http.HandlerFunc(s.handleGetCliente)))
	s.mux.Handle("PUT /api/clientes/{id}", s.protected(maxBody(http.HandlerFunc(s.handleUpdateCliente), 1<<20)))
	s.mux.Handle("DELETE /api/clientes/{id}", s.protected(http.HandlerFunc(s.handleDeleteCliente)))

	// Notificações
	s.mux.Handle("GET /api/notificacoes", s.protected(http.HandlerFunc(s.handleListNotificacoes)))
	s.mux.Handle("GET /api/notificacoes/unread-count", s.protected(http.HandlerFunc(s.handleUnreadCount)))
	s.mux.Handle("POST /api/notificacoes", s.protected(s.adminOnly(maxBody(http.HandlerFunc(s.handleCreateNotificacao), 1<<20))))
	s.mux.Handle("POST /api/notificacoes/broadcast", s.protected(s.adminOnly(maxBody(http.HandlerFunc(s.handleBroadcast), 1<<20))))
	s.mux.Handle("PATCH /api/notificacoes/{id}/lida", s.protected(http.HandlerFunc(s.handleMarkLida)))
	s.mux.Handle("POST /api/notificacoes/lidas", s.protected(http.HandlerFunc(s.handleMarkAllLidas)))
	s.mux.Handle("DELETE /api/notificacoes/{id}", s.protected(http.HandlerFunc(s.handleDeleteNotificacao)))

	// Admin
	s.mux.Handle("GET /api/admin/users", s.protected(s.adminOnly(http.HandlerFunc(s.handleAdminListUsers))))
	s.mux.Handle("POST /api/admin/users", s.protected(s.adminOnly(maxBody(http.HandlerFunc(s.handleAdminCreateUser), 1<<20))))
	s.mux.Handle("PATCH /api/admin/users/{id}", s.protected(s.adminOnly(maxBody(http.HandlerFunc(s.handleAdminUpdateUser), 1<<20))))
	s.mux.Handle("DELETE /api/admin/users/{id}", s.protected(s.adminOnly(http.HandlerFunc(s.handleAdminDeleteUser))))
	s.mux.Handle("GET /api/admin/audit-logs", s.protected(s.adminOnly(http.HandlerFunc(s.handleAdminAuditLogs))))
	s.mux.Handle("GET /api/admin/storage-settings", s.protected(s.adminOnly(http.HandlerFunc(s.handleAdminGetStorageSettings))))
	s.mux.Handle("PUT /api/admin/storage-settings", s.protected(s.adminOnly(maxBody(http.HandlerFunc(s.handleAdminSaveStorageSettings), 1<<20))))
	s.mux.Handle("POST /api/admin/clear-lockouts", s.protected(s.adminOnly(maxBody(http.HandlerFunc(s.handleAdminClearLockouts), 1<<20))))
}

// protected wraps a handler with the general rate limiter and JWT auth.
func (s *Server) protected(next http.Handler) http.Handler {
	return s.apiLimiter.Middleware(s.auth.Middleware(next))
}

// adminOnly requires the admin role. Runs inside auth middleware.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r)
		if !s.authService.IsAdmin(r.Context(), userID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "acesso restrito a administradores"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------- Helpers ----------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathUUID reads a path parameter that must be a UUID. Garbage values become
// a 404 at the handler instead of a database type error.
func pathUUID(r *http.Request, name string) (string, bool) {
	v := r.PathValue(name)
	if _, err := uuid.Parse(v); err != nil {
		return "", false
	}
	return v, true
}

// allowedOrigins returns the list of origins permitted for CORS.
// In production, set ALLOWED_ORIGINS env var to a comma-separated list.
func allowedOrigins() map[string]bool {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	origins := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:3001": true,
	}
	if originsStr != "" {
		for _, o := range strings.Split(originsStr, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				origins[o] = true
			}
		}
	}
	return origins
}

var corsOrigins = allowedOrigins()

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow whitelisted origins with credentials
		if origin != "" && corsOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else if origin == "" {
			// No Origin header (same-origin or non-browser), allow without credentials
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Unknown origin, allow without credentials (no cookies sent)
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}

		w.Header().Set("Vary", "Origin")

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
