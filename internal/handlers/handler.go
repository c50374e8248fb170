package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"roomchat/internal/chat"
	"roomchat/internal/models"
)

var errMissingToken = errors.New("missing token")

// Verifier resolves bearer tokens; auth.Service implements it.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.ErrorEvent{Code: code, Message: message})
}

// writeChatError maps coordinator errors to HTTP statuses.
func writeChatError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrRoomAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, chat.ErrInvalidRoomName):
		status = http.StatusBadRequest
	}
	writeError(w, status, chat.ErrorCode(err), err.Error())
}

// tokenFromRequest reads a bearer token from the Authorization header or
// the token query parameter, in that order.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// RequireAuth rejects requests that do not carry a valid token.
func RequireAuth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", errMissingToken.Error())
				return
			}
			if _, err := verifier.Verify(r.Context(), token); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
