package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Op      string `json:"op,omitempty"`
	ID      string `json:"id,omitempty"`
}

// StatusFor maps an error kind to the http status reported for it
func StatusFor(err error) int {
	switch cohort.KindOf(err) {
	case cohort.ErrInvalidParameter, cohort.ErrPaging, cohort.ErrProperty:
		return http.StatusBadRequest
	case cohort.ErrTypeNotKnown, cohort.ErrInstanceNotKnown:
		return http.StatusNotFound
	case cohort.ErrTypeConflict, cohort.ErrTypeInUse, cohort.ErrClassification,
		cohort.ErrInstanceNotDeleted, cohort.ErrEntityProxyOnly:
		return http.StatusConflict
	case cohort.ErrNotImplemented:
		return http.StatusNotImplemented
	case cohort.ErrNotSupported:
		return http.StatusMethodNotAllowed
	case cohort.ErrTypeNotSupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := errorBody{Error: http.StatusText(status), Message: err.Error()}
	if kind := cohort.KindOf(err); kind != nil {
		body.Error = kind.Error()
	}
	var ce *cohort.Error
	if errors.As(err, &ce) {
		body.Op = ce.Op
		body.ID = ce.ID
	}
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		s.logger.Error("request failed", requestFields(r, status, err)...)
	} else {
		s.logger.Debug("request refused", requestFields(r, status, err)...)
	}
	writeJSON(w, status, body)
}
