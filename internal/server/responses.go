package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xtding233/gacha-engine/internal/engine"
	"github.com/xtding233/gacha-engine/internal/gacha"
)

// Client-facing messages.
const (
	ErrMsgInternal       = "Something went wrong"
	ErrMsgInvalidRequest = "Invalid request body"
	ErrMsgInvalidPlayer  = "Invalid player UUID"
	ErrMsgInvalidSlot    = "Invalid slot"
	ErrMsgNoHost         = "No player host configured"
	ErrMsgUnavailable    = "Server is shutting down"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		http.Error(w, ErrMsgInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownBanner),
		errors.Is(err, engine.ErrNoBannerAt),
		errors.Is(err, engine.ErrLocationNotBound),
		errors.Is(err, gacha.ErrNoSession),
		errors.Is(err, gacha.ErrPlayerOffline):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidCount),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrSimulationTooBig),
		errors.Is(err, engine.ErrNotEnoughPulls),
		errors.Is(err, gacha.ErrInvalidLocation),
		errors.Is(err, gacha.ErrSlotOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrLocationTaken),
		errors.Is(err, gacha.ErrLocationInUse),
		errors.Is(err, gacha.ErrSessionOpening),
		errors.Is(err, gacha.ErrPhaseTransition):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoBannerFile):
		return http.StatusNotImplemented
	case errors.Is(err, engine.ErrLoopStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondEngineError writes err with its mapped status. Internal errors are
// logged and hidden from the client.
func (s *Server) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		s.log.Error("request failed", zapPath(r), zapErr(err))
		respondError(w, status, ErrMsgInternal)
	case http.StatusServiceUnavailable:
		respondError(w, status, ErrMsgUnavailable)
	default:
		respondError(w, status, err.Error())
	}
}

var validate = validator.New()

// decode reads a JSON body into req and validates it. On failure the
// response is already written.
func decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, ErrMsgInvalidRequest)
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrMsgInvalidRequest, Fields: validationFields(err)})
		return false
	}
	return true
}

func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"error": "Invalid request format"}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "This field is required"
		case "min", "gte":
			out[fe.Field()] = "Must be at least " + fe.Param()
		case "max", "lte":
			out[fe.Field()] = "Must be at most " + fe.Param()
		default:
			out[fe.Field()] = "Invalid value"
		}
	}
	return out
}
