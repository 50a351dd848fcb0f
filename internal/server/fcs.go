package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleTriggerFCS(w http.ResponseWriter, r *http.Request) {
	result, err := s.fcs.Trigger(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if result.Skipped {
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleGetFCS(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.fcs.Current(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if analysis == nil {
		writeError(w, http.StatusNotFound, "no analysis on file")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleFCSHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.fcs.History(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": history,
		"count":   len(history),
	})
}

// handleSubmitFCSResult is the callback for external analysis workers.
func (s *Server) handleSubmitFCSResult(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConversationID string `json:"conversation_id"`
		ReportText     string `json:"report_text"`
		StatementCount int    `json:"statement_count"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ConversationID == "" || body.ReportText == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and report_text are required")
		return
	}
	analysis, err := s.fcs.SubmitResult(r.Context(), body.ConversationID, body.ReportText, body.StatementCount)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleDeleteFCSResult(w http.ResponseWriter, r *http.Request) {
	if err := s.fcs.DeleteResult(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
