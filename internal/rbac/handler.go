package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/VrushankPatel/shield-sub001/internal/platform/httpx"
	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// Handler wires the RBAC management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers RBAC routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/roles", h.createRole)
	r.Put("/roles/{roleID}", h.updateRole)
	r.Delete("/roles/{roleID}", h.deleteRole)
	r.Post("/roles/{roleID}/permissions", h.assignPermissions)
	r.Delete("/roles/{roleID}/permissions/{permissionID}", h.removePermission)
	r.Post("/users/{userID}/roles", h.assignRoleToUser)
	r.Delete("/users/{userID}/roles/{roleID}", h.removeRoleFromUser)
	r.Get("/users/{userID}/permissions", h.userPermissions)
}

// actor authenticates and authorizes the caller for the given permission.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request, required string) (*shared.Principal, bool) {
	p := shared.PrincipalFromContext(r.Context())
	if p == nil || p.Type != shared.PrincipalTenantUser {
		httpx.RespondError(w, fmt.Errorf("tenant session required: %w", shared.ErrAuth))
		return nil, false
	}
	effective, err := h.service.GetUserPermissions(r.Context(), p.TenantID, p.UserID)
	if err != nil {
		h.logger.Error("resolve actor permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	if err := shared.Authorize(effective.Permissions, required); err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	return p, true
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %w", name, shared.ErrValidation)
	}
	return id, nil
}

type createRoleRequest struct {
	Code        string `json:"code" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SystemRole  bool   `json:"system_role"`
}

func toRoleResponse(role *Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Code:        role.Code,
		Name:        role.Name,
		Description: role.Description,
		SystemRole:  role.SystemRole,
	}
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserWrite)
	if !ok {
		return
	}
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	role, err := h.service.CreateRole(r.Context(), p.TenantID, p.UserID, req.Code, req.Name, req.Description, false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

type updateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserWrite)
	if !ok {
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	role, err := h.service.UpdateRole(r.Context(), p.TenantID, p.UserID, roleID, req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserWrite)
	if !ok {
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), p.TenantID, p.UserID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserWrite)
	if !ok {
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	if err := h.service.AssignPermissions(r.Context(), p.TenantID, p.UserID, roleID, req.PermissionIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removePermission(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserWrite)
	if !ok {
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	permissionID, err := pathID(r, "permissionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemovePermission(r.Context(), p.TenantID, p.UserID, roleID, permissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) assignRoleToUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserWrite)
	if !ok {
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("malformed body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	if err := h.service.AssignRoleToUser(r.Context(), p.TenantID, p.UserID, userID, req.RoleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRoleFromUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserWrite)
	if !ok {
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveRoleFromUser(r.Context(), p.TenantID, p.UserID, userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.actor(w, r, shared.PermUserRead)
	if !ok {
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	effective, err := h.service.GetUserPermissions(r.Context(), p.TenantID, userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, effective)
}
