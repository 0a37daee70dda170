package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/jobtracker/apiserver/internal/services"
)

const maxJSONBodyBytes = 1 << 20

type contextKey string

const contextClaimsKey contextKey = "claims"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse confirms a deletion.
type MessageResponse struct {
	Message string `json:"message"`
	Deleted any    `json:"deleted"`
}

// ClaimsFromContext returns the session claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (services.Claims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(services.Claims)
	return claims, ok
}

func userIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID < 1 {
		return 0, errors.New("missing subject")
	}
	return claims.UserID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error to its status. Anything that is not
// a *services.Error is logged and answered with a 500 and internalMsg.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		logging.FromContext(r.Context()).Error(internalMsg, "error", err)
		writeError(w, http.StatusInternalServerError, internalMsg)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(svcErr.Kind, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(svcErr.Kind, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(svcErr.Kind, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(svcErr.Kind, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(svcErr.Kind, services.ErrConflict):
		status = http.StatusConflict
	}
	writeError(w, status, svcErr.Message)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func parseIDParam(r *http.Request, param, label string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	// ids are SERIAL columns, so anything past int32 cannot exist.
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s id", label)
	}
	return int(id), nil
}

// queryInt parses a positive integer query parameter. Missing or invalid
// values yield 0 so the service applies its default.
func queryInt(r *http.Request, name string) int {
	value, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name)))
	if err != nil || value < 1 {
		return 0
	}
	return value
}

// NotFound answers unknown routes with a JSON error.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}

func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// RateLimited returns a handler that answers 429 with message.
func RateLimited(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusTooManyRequests, message)
	}
}
