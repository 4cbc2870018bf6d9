package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/middleware"
)

func (s *Server) handleListImoveis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := imob.ImovelFilter{
		CidadeID:   q.Get("cidade_id"),
		Tipo:       q.Get("tipo"),
		Finalidade: q.Get("finalidade"),
		Busca:      q.Get("busca"),
		OrderBy:    q.Get("order_by"),
		OrderDesc:  q.Get("order_dir") == "desc",
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	if v := q.Get("valor_min"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.ValorMin = &n
		}
	}
	if v := q.Get("valor_max"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.ValorMax = &n
		}
	}
	if v := q.Get("quartos"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Quartos = &n
		}
	}
	if v := q.Get("destaque"); v != "" {
		b := v == "true"
		f.Destaque = &b
	}
	// Default to active listings unless explicitly asked otherwise
	if v := q.Get("ativo"); v != "" {
		b := v == "true"
		f.Ativo = &b
	} else {
		b := true
		f.Ativo = &b
	}

	result, err := s.imovelService.List(r.Context(), f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetImovel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imóvel não encontrado"})
		return
	}
	imovel, status, err := s.imovelService.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, imovel)
}

func (s *Server) handleCreateImovel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req imob.ImovelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	imovel, status, err := s.imovelService.Create(r.Context(), userID, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "create_imovel", "imovel", imovel.ID, r, map[string]interface{}{"nome": imovel.Nome})
	writeJSON(w, http.StatusCreated, imovel)
}

func (s *Server) handleUpdateImovel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	imovelID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imóvel não encontrado"})
		return
	}
	var req imob.ImovelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}

	imovel, status, err := s.imovelService.Update(r.Context(), imovelID, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "update_imovel", "imovel", imovelID, r, nil)
	writeJSON(w, status, imovel)
}

// handleDeleteImovel soft-deletes by default. Admins may pass ?permanente=true
// to hard-delete the record and its stored photos.
func (s *Server) handleDeleteImovel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	imovelID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imóvel não encontrado"})
		return
	}

	if r.URL.Query().Get("permanente") == "true" {
		if !s.authService.IsAdmin(r.Context(), userID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "exclusão permanente restrita a administradores"})
			return
		}

		keys, status, err := s.imovelService.Delete(r.Context(), imovelID)
		if err != nil {
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		for _, key := range keys {
			if err := s.storageService.DeleteObject(r.Context(), key); err != nil {
				slog.Warn("Failed to delete stored image", "key", key, "error", err)
			}
		}

		s.auditService.Log(r.Context(), &userID, "delete_imovel_permanente", "imovel", imovelID, r, nil)
		writeJSON(w, status, map[string]string{"status": "deleted"})
		return
	}

	status, err := s.imovelService.Deactivate(r.Context(), imovelID)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "deactivate_imovel", "imovel", imovelID, r, nil)
	writeJSON(w, status, map[string]string{"status": "deactivated"})
}

// ---------- images ----------

func (s *Server) handleUploadImagem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	imovelID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imóvel não encontrado"})
		return
	}

	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "arquivo muito grande ou formulário inválido"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "campo file é obrigatório"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	// Browsers sometimes send octet-stream; fall back to the extension
	if contentType == "" || contentType == "application/octet-stream" {
		switch strings.ToLower(header.Filename[strings.LastIndex(header.Filename, ".")+1:]) {
		case "jpg", "jpeg":
			contentType = "image/jpeg"
		case "png":
			contentType = "image/png"
		case "webp":
			contentType = "image/webp"
		}
	}

	key, url, status, err := s.storageService.UploadImage(r.Context(), imovelID, contentType, file)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	img, status, err := s.imovelService.AddImage(r.Context(), imovelID, key, url, contentType, header.Size)
	if err != nil {
		// DB insert failed after upload: clean up the orphaned object
		if delErr := s.storageService.DeleteObject(r.Context(), key); delErr != nil {
			slog.Warn("Failed to clean up orphaned upload", "key", key, "error", delErr)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.auditService.Log(r.Context(), &userID, "upload_imagem", "imovel", imovelID, r, map[string]interface{}{
		"file_name": header.Filename,
		"file_size": header.Size,
	})
	writeJSON(w, status, img)
}

func (s *Server) handleSetImagemPrincipal(w http.ResponseWriter, r *http.Request) {
	imovelID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imóvel não encontrado"})
		return
	}
	imageID, ok := pathUUID(r, "imageId")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imagem não encontrada"})
		return
	}

	status, err := s.imovelService.SetCoverImage(r.Context(), imovelID, imageID)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteImagem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	imovelID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imóvel não encontrado"})
		return
	}
	imageID, ok := pathUUID(r, "imageId")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "imagem não encontrada"})
		return
	}

	key, status, err := s.imovelService.DeleteImage(r.Context(), imovelID, imageID)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if err := s.storageService.DeleteObject(r.Context(), key); err != nil {
		slog.Warn("Failed to delete stored image", "key", key, "error", err)
	}

	s.auditService.Log(r.Context(), &userID, "delete_imagem", "imovel", imovelID, r, nil)
	writeJSON(w, status, map[string]string{"status": "deleted"})
}
