package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/security"
)

// AccessHandler guards the dashboard behind the shared password. This is a
// capability flag on application state, not authentication of a person.
type AccessHandler struct {
	authService *security.AuthService
}

func NewAccessHandler(authService *security.AuthService) *AccessHandler {
	return &AccessHandler{authService: authService}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func sendJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// HandleLogin exchanges the shared dashboard password for a session token.
func (h *AccessHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.authService.VerifyPassword(payload.Password) {
		logger.FromContext(r.Context()).Warn("Dashboard login rejected")
		sendJSONError(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.IssueToken()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to issue session token", "error", err)
		sendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]string{"token": token}, http.StatusOK)
}

// AccessMiddleware requires a valid session token on dashboard routes.
func (h *AccessHandler) AccessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			ctxLogger.Debug("AccessMiddleware: Authorization header missing", "path", r.URL.Path)
			sendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			ctxLogger.Debug("AccessMiddleware: Token string empty", "path", r.URL.Path)
			sendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		if err := h.authService.ValidateToken(tokenString); err != nil {
			ctxLogger.Warn("AccessMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			sendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
