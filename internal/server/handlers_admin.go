package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/middleware"
)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	result, status, err := s.adminService.ListUsers(r.Context(), page, perPage)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, result)
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r)
	var req imob.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	resp, status, err := s.adminService.CreateUser(r.Context(), req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &callerID, "create_user", "user", resp.User.ID, r, map[string]interface{}{"email": resp.User.Email, "role": resp.User.Role})
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r)
	targetID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "usuário não encontrado"})
		return
	}
	var req imob.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	status, err := s.adminService.UpdateUser(r.Context(), callerID, targetID, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	meta := map[string]interface{}{}
	if req.Role != nil {
		meta["role"] = *req.Role
	}
	if req.Ativo != nil {
		meta["ativo"] = *req.Ativo
	}
	s.auditService.Log(r.Context(), &callerID, "update_user", "user", targetID, r, meta)
	writeJSON(w, status, map[string]string{"status": "updated"})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r)
	targetID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "usuário não encontrado"})
		return
	}

	status, err := s.adminService.DeleteUser(r.Context(), callerID, targetID)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &callerID, "delete_user", "user", targetID, r, nil)
	writeJSON(w, status, map[string]string{"status": "deleted"})
}

func (s *Server) handleAdminAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	result, err := s.auditService.List(r.Context(), q.Get("action"), q.Get("user_id"), page, perPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdminGetStorageSettings(w http.ResponseWriter, r *http.Request) {
	settings, status, err := s.storageService.GetSettings(r.Context())
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, settings)
}

func (s *Server) handleAdminSaveStorageSettings(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r)
	var req imob.SaveStorageSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	settings, status, err := s.storageService.SaveSettings(r.Context(), req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &callerID, "update_storage_settings", "storage_settings", "", r, map[string]interface{}{"bucket": settings.S3Bucket})
	writeJSON(w, status, settings)
}

// handleAdminClearLockouts removes the login lockout for an email, letting
// a locked-out user try again immediately.
func (s *Server) handleAdminClearLockouts(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r)
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email é obrigatório"})
		return
	}

	cleared, err := s.authService.ClearLockouts(r.Context(), req.Email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &callerID, "clear_lockouts", "login_lockout", req.Email, r, nil)
	writeJSON(w, http.StatusOK, map[string]int64{"removidos": cleared})
}
