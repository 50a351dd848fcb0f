package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crestfund/lead-crm/internal/model"
)

func (s *Server) handleListLenders(w http.ResponseWriter, r *http.Request) {
	lenders, err := s.lenders.ListLenders(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lenders": lenders,
		"count":   len(lenders),
	})
}

func (s *Server) handleCreateLender(w http.ResponseWriter, r *http.Request) {
	var l model.Lender
	if err := decodeJSON(r, &l); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if l.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, err := s.lenders.CreateLender(r.Context(), l)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateLender(w http.ResponseWriter, r *http.Request) {
	var l model.Lender
	if err := decodeJSON(r, &l); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	l.ID = chi.URLParam(r, "id")
	if err := s.lenders.UpdateLender(r.Context(), l); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLender(w http.ResponseWriter, r *http.Request) {
	if err := s.lenders.DeleteLender(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleQualify(w http.ResponseWriter, r *http.Request) {
	result, err := s.lenders.Qualify(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if len(result.Matches) == 0 && result.Job != nil {
		// Handed off to an external worker.
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQualifiedMatches(w http.ResponseWriter, r *http.Request) {
	s.writeMatches(w, r, true)
}

func (s *Server) handleAllMatches(w http.ResponseWriter, r *http.Request) {
	s.writeMatches(w, r, false)
}

func (s *Server) writeMatches(w http.ResponseWriter, r *http.Request, qualifiedOnly bool) {
	matches, err := s.lenders.Matches(r.Context(), chi.URLParam(r, "conversationID"), qualifiedOnly)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	match, err := s.lenders.Recommendation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if match == nil {
		writeError(w, http.StatusNotFound, "no qualified matches")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// handleSubmitMatches is the callback for external qualification workers.
func (s *Server) handleSubmitMatches(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConversationID string              `json:"conversation_id"`
		Matches        []model.LenderMatch `json:"matches"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if err := s.lenders.SubmitMatches(r.Context(), body.ConversationID, body.Matches); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "stored", "count": len(body.Matches)})
}

func (s *Server) handleQualificationComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Result json.RawMessage `json:"result"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	matched, err := s.lenders.CompleteQualification(r.Context(), chi.URLParam(r, "conversationID"), body.Result)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "matched": matched})
}

func (s *Server) handleSubmitPacket(w http.ResponseWriter, r *http.Request) {
	if s.submissions == nil {
		writeError(w, http.StatusServiceUnavailable, "submission delivery is not configured")
		return
	}
	receipt, err := s.submissions.Submit(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
