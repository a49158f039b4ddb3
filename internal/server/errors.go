package server

import (
	"errors"
	"net/http"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/extract"
	"github.com/hyperjump/jobmatch/internal/search"
	"github.com/hyperjump/jobmatch/internal/storage"
	"github.com/hyperjump/jobmatch/internal/vector"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Stage string `json:"stage,omitempty"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNoText), errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrDimensionMismatch):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrStoreWrite):
		return http.StatusBadGateway
	case errors.Is(err, search.ErrDocumentNotFound),
		errors.Is(err, storage.ErrRunNotFound),
		errors.Is(err, vector.ErrCollectionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Code: apperr.Code(err)}
	var stageErr *apperr.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = string(stageErr.Stage)
	}
	status := statusFor(err)
	if status == http.StatusNotFound {
		resp.Code = "not_found"
	}
	s.respondJSON(w, status, resp)
}
