package api

import (
	"log/slog"
	"net/http"

	"github.com/lessonworks/analysis-api/internal/api/shared"
	"github.com/lessonworks/analysis-api/internal/service/auth"
)

// AuthHandler exchanges the admin credential for a short-lived JWT.
type AuthHandler struct {
	jwtService        auth.JWTService
	passwordVerifier  auth.PasswordVerifier
	adminPasswordHash string
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	jwtService auth.JWTService,
	passwordVerifier auth.PasswordVerifier,
	adminPasswordHash string,
) *AuthHandler {
	return &AuthHandler{
		jwtService:        jwtService,
		passwordVerifier:  passwordVerifier,
		adminPasswordHash: adminPasswordHash,
	}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.passwordVerifier.Compare(h.adminPasswordHash, req.Password); err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), auth.AdminSubject)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate token", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{Token: token})
}
