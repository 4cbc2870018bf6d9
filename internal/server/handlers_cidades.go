package server

import (
	"encoding/json"
	"net/http"

	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/middleware"
)

func (s *Server) handleListCidades(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("ativa") != "false"
	cidades, err := s.cidadeService.List(r.Context(), onlyActive)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cidades": cidades})
}

func (s *Server) handleGetCidade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cidade não encontrada"})
		return
	}
	cidade, status, err := s.cidadeService.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, cidade)
}

func (s *Server) handleCreateCidade(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req imob.CidadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	cidade, status, err := s.cidadeService.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "create_cidade", "cidade", cidade.ID, r, map[string]interface{}{"nome": cidade.Nome, "uf": cidade.UF})
	writeJSON(w, http.StatusCreated, cidade)
}

func (s *Server) handleUpdateCidade(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cidade não encontrada"})
		return
	}
	var req imob.CidadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	cidade, status, err := s.cidadeService.Update(r.Context(), id, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "update_cidade", "cidade", id, r, nil)
	writeJSON(w, status, cidade)
}

func (s *Server) handleDeleteCidade(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cidade não encontrada"})
		return
	}

	status, err := s.cidadeService.Delete(r.Context(), id)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "delete_cidade", "cidade", id, r, nil)
	writeJSON(w, status, map[string]string{"status": "deleted"})
}
