package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wonny/tickersync/internal/api/middleware"
)

// SuccessResponse represents a successful API response
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// Meta represents metadata in response
type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details
type ErrorDetail struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes
const (
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeDatabaseError    = "DATABASE_ERROR"
)

// Success sends a 200 response with data
func Success(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, http.StatusOK, SuccessResponse{
		Data: data,
		Meta: Meta{RequestID: middleware.GetRequestID(r.Context()), Timestamp: time.Now()},
	})
}

// SuccessWithCount sends a list response
func SuccessWithCount(w http.ResponseWriter, r *http.Request, data any, count int) {
	writeJSON(w, http.StatusOK, SuccessResponse{
		Data: data,
		Meta: Meta{RequestID: middleware.GetRequestID(r.Context()), Timestamp: time.Now(), Count: count},
	})
}

// Error sends an error response
func Error(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	requestID := middleware.GetRequestID(r.Context())

	log.Error().
		Str("request_id", requestID).
		Str("error_code", code).
		Str("message", message).
		Int("status", statusCode).
		Msg("API error response")

	writeJSON(w, statusCode, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now(),
	}})
}

// BadRequest sends 400
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, ErrCodeInvalidParameter, message)
}

// NotFound sends 404
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, ErrCodeNotFound, message)
}

// DatabaseError sends 500 without leaking the driver error
func DatabaseError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("Database error")
	Error(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Database operation failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
