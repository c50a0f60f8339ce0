package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/memories-social/apiserver/internal/services"
	"github.com/memories-social/apiserver/internal/store"
	"github.com/memories-social/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok {
		return types.User{}, errors.New("missing user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service and store errors onto HTTP statuses:
// validation 400, not-found 404, conflict 409, ownership 403, the rest 500.
func writeServiceError(w http.ResponseWriter, err error, notFound, internal string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotPostAuthor):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrBioTooLong),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrSelfFollow),
		errors.Is(err, services.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, internal)
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
