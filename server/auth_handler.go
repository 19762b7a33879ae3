package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"GuildFM/core/auth"
	"GuildFM/logger"
)

const adminUsername = "admin"

type contextKey string

const usernameKey contextKey = "username"

// TokenRequest represents the token request body
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenHandler exchanges the admin password for a bearer token.
func (h *APIHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" {
		req.Username = adminUsername
	}

	if req.Username != adminUsername || !auth.CheckPasswordHash(req.Password, h.adminHash) {
		logger.Warn("[Token] 密码验证失败", logger.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.issuer.GenerateToken(req.Username)
	if err != nil {
		logger.Error("[Token] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// AuthMiddleware checks for a valid bearer token. The websocket route may
// pass it as ?token= instead, since browsers cannot set headers there.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}
			token = parts[1]
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		claims, err := h.issuer.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UsernameFromContext extracts the username from the request context
func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}
