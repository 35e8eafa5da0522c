package magiclink

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatherly/gatherly-auth/internal/httputil"
	"github.com/gatherly/gatherly-auth/pkg/auth"
	"github.com/gatherly/gatherly-auth/pkg/domain"
)

// Handler handles magic-link sign-in endpoints.
type Handler struct {
	logger           *slog.Logger
	magicLinkService *auth.MagicLinkService
}

// NewHandler creates a new magic-link handler.
func NewHandler(logger *slog.Logger, magicLinkService *auth.MagicLinkService) *Handler {
	return &Handler{
		logger:           logger,
		magicLinkService: magicLinkService,
	}
}

// RequestRequest represents a magic-link request.
type RequestRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// MessageResponse is a generic message reply.
type MessageResponse struct {
	Message string `json:"message"`
}

// VerifyRequest represents a magic-link verification.
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyResponse carries the issued tokens on success.
type VerifyResponse struct {
	Success bool             `json:"success"`
	Tokens  *domain.TokenSet `json:"tokens,omitempty"`
}

// Request starts a sign-in attempt and emails a magic link.
// POST /auth/magic-link/request
//
// The response is identical whether or not an account exists; the only
// observable difference is what lands in the inbox.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var req RequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.magicLinkService.RequestLink(r.Context(), req.Email, req.Name); err != nil {
		if errors.Is(err, domain.ErrInvalidEmail) {
			httputil.Error(w, http.StatusBadRequest, "a valid email address is required")
			return
		}
		h.logger.Error("failed to issue magic link", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{
		Message: "If the address is valid, a sign-in link is on its way",
	})
}

// Verify exchanges a clicked magic link for tokens.
// POST /auth/magic-link/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "email and code are required")
		return
	}

	tokens, err := h.magicLinkService.VerifyLink(r.Context(), req.Email, req.Code, auth.IssueSessionOpts{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		// Rejections, expiry, and unknown identities all collapse into one
		// user-visible error; internal distinctions would leak whether an
		// account exists.
		if errors.Is(err, domain.ErrChallengeRejected) ||
			errors.Is(err, domain.ErrChallengeExpired) ||
			errors.Is(err, domain.ErrChallengeNotFound) ||
			errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired link")
			return
		}
		h.logger.Error("failed to verify magic link", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	httputil.JSON(w, http.StatusOK, VerifyResponse{
		Success: true,
		Tokens:  tokens,
	})
}
