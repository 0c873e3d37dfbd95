package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode)
//  3. Error is mapped via core.MapError to a coded message
//  4. Technical error is logged with the request ID for correlation
//  5. The coded message is rendered as JSON for /api routes, HTML otherwise

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/seedexport/internal/core"
	"github.com/JonMunkholm/seedexport/internal/logging"
	"github.com/JonMunkholm/seedexport/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Action  string              `json:"action,omitempty"`
	Code    string              `json:"code"`
	Tables  []core.TableOutcome `json:"tables,omitempty"`
}

// respondError logs the technical error and writes a coded response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	s.respondErrorWithOutcomes(w, r, err, statusCode, nil)
}

func (s *Server) respondErrorWithOutcomes(w http.ResponseWriter, r *http.Request, err error, statusCode int, outcomes []core.TableOutcome) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode, outcomes)
		return
	}
	respondErrorHTML(w, r, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int, outcomes []core.TableOutcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Tables:  outcomes,
	})
}

// respondErrorHTML renders the error page.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = templates.ErrorPage(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// statusFor maps an export error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrAllTablesFailed), errors.Is(err, core.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrDivergentRowShape), errors.Is(err, core.ErrUnencodableValue):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
