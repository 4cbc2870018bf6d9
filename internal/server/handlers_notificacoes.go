package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/middleware"
)

func (s *Server) handleListNotificacoes(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	var lida *bool
	if v := q.Get("lida"); v != "" {
		b := v == "true"
		lida = &b
	}

	result, err := s.notifService.List(r.Context(), userID, lida, q.Get("tipo"), page, perPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	count, err := s.notifService.UnreadCount(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleCreateNotificacao(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req imob.NotificacaoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	notif, status, err := s.notifService.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "create_notificacao", "notificacao", notif.ID, r, nil)
	writeJSON(w, http.StatusCreated, notif)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req struct {
		Titulo   string `json:"titulo"`
		Mensagem string `json:"mensagem"`
		Tipo     string `json:"tipo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	count, status, err := s.notifService.Broadcast(r.Context(), req.Titulo, req.Mensagem, req.Tipo)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "broadcast_notificacao", "notificacao", "", r, map[string]interface{}{"destinatarios": count})
	writeJSON(w, status, map[string]int64{"enviadas": count})
}

func (s *Server) handleMarkLida(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "notificação não encontrada"})
		return
	}
	status, err := s.notifService.MarkRead(r.Context(), userID, id)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, map[string]string{"status": "updated"})
}

func (s *Server) handleMarkAllLidas(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	count, err := s.notifService.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marcadas": count})
}

func (s *Server) handleDeleteNotificacao(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "notificação não encontrada"})
		return
	}
	status, err := s.notifService.Delete(r.Context(), userID, id)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, map[string]string{"status": "deleted"})
}
