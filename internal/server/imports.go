package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCSVUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	record, err := s.imports.Import(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleCSVHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := s.imports.History(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"imports": history,
		"count":   len(history),
	})
}

func (s *Server) handleCSVImport(w http.ResponseWriter, r *http.Request) {
	record, err := s.imports.Get(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "import not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleCSVConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.imports.Conversations(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": convs,
		"count":         len(convs),
	})
}
