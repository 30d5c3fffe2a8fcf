package rootaccount

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/VrushankPatel/shield-sub001/internal/auth"
	"github.com/VrushankPatel/shield-sub001/internal/platform/httpx"
	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// Handler exposes the root security endpoints.
type Handler struct {
	logger    *slog.Logger
	manager   *Manager
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	return &Handler{
		logger:    logger,
		manager:   manager,
		validator: validator.New(),
	}
}

// MountRoutes registers the root routes. Login and refresh stay open; the
// rest of the subtree demands an authenticated principal up front.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/login", h.login)
	r.Post("/auth/refresh", h.refresh)
	r.Group(func(g chi.Router) {
		g.Use(auth.RequirePrincipal)
		g.Post("/auth/change-password", h.changePassword)
		g.Post("/societies", h.onboardSociety)
	})
}

type loginRequest struct {
	LoginID  string `json:"login_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	pair, err := h.manager.Login(r.Context(), req.LoginID, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	pair, err := h.manager.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

type changePasswordRequest struct {
	NewPassword        string `json:"new_password" validate:"required,min=12,max=128"`
	ConfirmNewPassword string `json:"confirm_new_password" validate:"required"`
	Email              string `json:"email" validate:"required,email"`
	Mobile             string `json:"mobile" validate:"required,min=7,max=20"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	if err := h.manager.ChangePassword(r.Context(), p, req.NewPassword, req.ConfirmNewPassword, req.Email, req.Mobile); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "password changed, all sessions revoked"})
}

type onboardRequest struct {
	SocietyName   string `json:"society_name" validate:"required,max=200"`
	Address       string `json:"address" validate:"max=500"`
	AdminName     string `json:"admin_name" validate:"required,max=120"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminMobile   string `json:"admin_mobile" validate:"required,min=7,max=20"`
	AdminPassword string `json:"admin_password" validate:"required,min=12,max=128"`
}

func (h *Handler) onboardSociety(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	result, err := h.manager.OnboardSociety(r.Context(), p, OnboardRequest{
		SocietyName:   req.SocietyName,
		Address:       req.Address,
		AdminName:     req.AdminName,
		AdminEmail:    req.AdminEmail,
		AdminMobile:   req.AdminMobile,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("society onboarded",
		slog.Int64("tenant_id", result.TenantID),
		slog.Int64("admin_user_id", result.AdminUserID))
	httpx.JSON(w, http.StatusCreated, result)
}
