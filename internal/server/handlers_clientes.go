package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/middleware"
)

func (s *Server) handleListClientes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	result, err := s.clienteService.List(r.Context(), q.Get("busca"), page, perPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCliente(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cliente não encontrado"})
		return
	}
	cliente, status, err := s.clienteService.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, cliente)
}

func (s *Server) handleCreateCliente(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req imob.ClienteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	cliente, status, err := s.clienteService.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "create_cliente", "cliente", cliente.ID, r, map[string]interface{}{"nome": cliente.Nome})
	writeJSON(w, http.StatusCreated, cliente)
}

func (s *Server) handleUpdateCliente(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cliente não encontrado"})
		return
	}
	var req imob.ClienteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	cliente, status, err := s.clienteService.Update(r.Context(), id, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "update_cliente", "cliente", id, r, nil)
	writeJSON(w, status, cliente)
}

func (s *Server) handleDeleteCliente(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cliente não encontrado"})
		return
	}

	status, err := s.clienteService.Delete(r.Context(), id)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "delete_cliente", "cliente", id, r, nil)
	writeJSON(w, status, map[string]string{"status": "deleted"})
}
