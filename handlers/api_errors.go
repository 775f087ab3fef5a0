package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/services"
)

// Error codes returned in APIErrorDetail.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidLabel   = "invalid_label"
	CodeInvalidImage   = "invalid_image"
	CodeNoFace         = "no_face_detected"
	CodeEngineNotReady = "engine_not_ready"
	CodeDimension      = "embedding_dimension_mismatch"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal_error"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps recognition errors onto API errors. Anything
// unrecognized is logged and reported as a 500 without internals.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, action string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidLabel):
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidLabel, err.Error())
	case errors.Is(err, faces.ErrNoFaceDetected), errors.Is(err, faces.ErrNoEmbedding):
		WriteAPIError(w, http.StatusUnprocessableEntity, CodeNoFace, err.Error())
	case errors.Is(err, faces.ErrDimensionMismatch):
		WriteAPIError(w, http.StatusConflict, CodeDimension, err.Error())
	case errors.Is(err, faces.ErrEngineNotReady):
		WriteAPIError(w, http.StatusServiceUnavailable, CodeEngineNotReady, "face models are not available")
	default:
		log.Error("handlers: request failed", "action", action, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to "+action)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
