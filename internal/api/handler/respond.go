// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/util"
)

// DefaultTimeout bounds every request, including the time spent waiting for an account's row lock.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// responder holds the helpers shared by all handlers.
type responder struct {
	logger   *slog.Logger
	validate *validator.Validate
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: logger, validate: validator.New()}
}

// respondWithJSON sends a JSON response.
func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps service errors to status codes. Anything unrecognised
// is a 500, and the metered action it guarded must be treated as not authorized.
func (h responder) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput), util.IsError(err, util.ErrUnknownAction):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrInvalidSignature):
		statusCode = http.StatusBadRequest
		message = "signature verification failed"
	case util.IsError(err, util.ErrAccountNotFound), util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrAccountExists), util.IsError(err, util.ErrDuplicateTransaction):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, util.ErrBillingNotConfigured):
		h.logger.Error("Billing webhook received without configuration", "error", err)
		statusCode = http.StatusServiceUnavailable
		message = "billing not configured"
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func (h responder) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return h.decode(w, r, dst, false)
}

// decodeOptional is decodeAndValidate for endpoints whose body may be omitted.
func (h responder) decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return h.decode(w, r, dst, true)
}

func (h responder) decode(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: malformed JSON body", util.ErrInvalidInput)
		}
		if !allowEmpty {
			return fmt.Errorf("%w: request body is required", util.ErrInvalidInput)
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	return nil
}

// userIDParam parses the {userID} path segment.
func userIDParam(r *http.Request) (uuid.UUID, error) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid user id", util.ErrInvalidInput)
	}
	return userID, nil
}

// refusalStatus is the status code of a routine refusal.
func refusalStatus(reason domain.FailureReason) int {
	switch reason {
	case domain.FailureAccountNotFound, domain.FailureUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusPaymentRequired
	}
}
