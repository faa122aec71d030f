package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// UserIDHeader is set by the authenticating gateway in front of this service.
const UserIDHeader = "X-User-ID"

// Identity extracts the caller's user ID from the gateway header and injects
// it into the request context.
type Identity struct {
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewIdentity creates a new Identity middleware instance.
func NewIdentity(contextManager model.ContextManager, logger *logger.Logger) *Identity {
	return &Identity{contextManager: contextManager, logger: logger}
}

// Handle rejects requests without a parseable user ID header.
func (m *Identity) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(UserIDHeader))
		if err != nil || userID == uuid.Nil {
			m.logger.Warn("request without valid user id", "path", r.URL.Path)
			http.Error(w, "missing or invalid user id", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetUserIDToContext(r.Context(), userID)))
	})
}
