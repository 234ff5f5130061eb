package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// UserIDHeader carries the authenticated user ID set by the fronting identity proxy.
const UserIDHeader = "X-User-ID"

// ErrUnauthenticated is returned when a request carries no user identity.
var ErrUnauthenticated = errors.New("missing user identity")

// IdentityProvider resolves the user making a request.
type IdentityProvider interface {
	UserID(r *http.Request) (string, error)
}

// HeaderIdentity reads the user ID from a request header.
type HeaderIdentity struct {
	Header string
}

// UserID returns the trimmed header value. An empty Header reads UserIDHeader.
func (h HeaderIdentity) UserID(r *http.Request) (string, error) {
	name := h.Header
	if name == "" {
		name = UserIDHeader
	}
	id := strings.TrimSpace(r.Header.Get(name))
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}

// requireUser resolves the caller or writes a 401 and returns false.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.identity.UserID(r)
	if err != nil {
		slog.Warn("Server.requireUser: request without identity", "path", r.URL.Path, "error", err)
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Authentication required"))
		return "", false
	}
	return userID, true
}
