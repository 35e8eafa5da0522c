package me

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatherly/gatherly-auth/internal/http/middleware"
	"github.com/gatherly/gatherly-auth/internal/httputil"
	"github.com/gatherly/gatherly-auth/pkg/domain"
	"github.com/gatherly/gatherly-auth/pkg/repository"
)

// Handler handles user profile endpoints.
type Handler struct {
	logger      *slog.Logger
	users       *repository.UsersRepository
	memberships *repository.MembershipsRepository
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, users *repository.UsersRepository, memberships *repository.MembershipsRepository) *Handler {
	return &Handler{
		logger:      logger,
		users:       users,
		memberships: memberships,
	}
}

// TenantResponse represents the user's tenant in the profile response.
type TenantResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

// UserResponse represents the user profile response. Tenant is the
// primary (oldest active) membership; Tenants lists all of them.
type UserResponse struct {
	ID            string           `json:"id"`
	Email         string           `json:"email"`
	EmailVerified bool             `json:"emailVerified"`
	Name          *string          `json:"name,omitempty"`
	Tenant        *TenantResponse  `json:"tenant,omitempty"`
	Tenants       []TenantResponse `json:"tenants,omitempty"`
}

// GetMe returns the current user's profile and primary tenant.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to load user", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	resp := UserResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Name:          user.Name,
	}

	memberships, err := h.memberships.GetActiveMembershipsWithTenants(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load memberships", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	for _, m := range memberships {
		resp.Tenants = append(resp.Tenants, TenantResponse{
			ID:     m.Tenant.ID.String(),
			Name:   m.Tenant.Name,
			Slug:   m.Tenant.Slug,
			Status: string(m.Tenant.Status),
		})
	}
	if len(resp.Tenants) > 0 {
		resp.Tenant = &resp.Tenants[0]
	}

	httputil.JSON(w, http.StatusOK, resp)
}
