package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/aichat"
	"github.com/crestfund/lead-crm/internal/documents"
	"github.com/crestfund/lead-crm/internal/fcs"
	"github.com/crestfund/lead-crm/internal/lead"
	"github.com/crestfund/lead-crm/internal/lender"
	"github.com/crestfund/lead-crm/internal/messaging"
	"github.com/crestfund/lead-crm/internal/submission"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps domain errors onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	var validation *lead.ValidationError
	var precondition *fcs.PreconditionError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &precondition):
		writeError(w, http.StatusBadRequest, precondition.Error())
	case errors.Is(err, lead.ErrNotFound),
		errors.Is(err, documents.ErrNotFound),
		errors.Is(err, fcs.ErrConversationNotFound),
		errors.Is(err, lender.ErrConversationNotFound),
		errors.Is(err, messaging.ErrConversationNotFound),
		errors.Is(err, aichat.ErrConversationNotFound),
		errors.Is(err, submission.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, submission.ErrNoQualifiedLenders):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
