package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hkaraoglu/dealer-auth/internal/auth"
	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/services"
	pkghttp "github.com/hkaraoglu/dealer-auth/pkg/http"
)

// UserHandler handles user-management HTTP requests. Admin-only routes are
// gated by the role middleware; the single-user read additionally allows
// self-access and is enforced in the service.
type UserHandler struct {
	service AuthServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service AuthServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// CreateUserRequest represents the request body for admin user creation
type CreateUserRequest struct {
	BusinessName string  `json:"businessName" validate:"required,min=2,max=255"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required"`
	Province     string  `json:"province" validate:"required,min=2,max=100"`
	ContactName  *string `json:"contactName" validate:"omitempty,min=2,max=255"`
	Phone        *string `json:"phone" validate:"omitempty,phone"`
	Role         string  `json:"role" validate:"required,oneof=ADMIN DEALER"`
	IsActive     *bool   `json:"isActive"`
}

// UpdateUserRequest represents the request body for admin user updates.
// ContactName and Phone use Optional so an explicit null clears the field
// while an absent key leaves it alone.
type UpdateUserRequest struct {
	Role         *string                 `json:"role" validate:"omitempty,oneof=ADMIN DEALER"`
	BusinessName *string                 `json:"businessName" validate:"omitempty,min=2,max=255"`
	Province     *string                 `json:"province" validate:"omitempty,min=2,max=100"`
	ContactName  models.Optional[string] `json:"contactName" validate:"omitempty,min=2,max=255"`
	Phone        models.Optional[string] `json:"phone" validate:"omitempty,phone"`
	Password     *string                 `json:"password"`
	IsActive     *bool                   `json:"isActive"`
}

// ListUsersResponse represents a list of users
type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
	Total int             `json:"total"`
}

// CreateUser creates an account with caller-specified role and state
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid role")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	user, err := h.service.CreateByAdmin(r.Context(), services.AdminCreateInput{
		RegisterInput: services.RegisterInput{
			BusinessName: req.BusinessName,
			Email:        req.Email,
			Password:     req.Password,
			Province:     req.Province,
			ContactName:  req.ContactName,
			Phone:        req.Phone,
		},
		Role:     role,
		IsActive: isActive,
	}, identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userModelToResponse(user))
}

// ListUsers returns non-deleted users, optionally filtered by role and
// activation state via ?role= and ?isActive= query parameters
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var role *models.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := models.ParseRole(raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid role filter")
			return
		}
		role = &parsed
	}

	var isActive *bool
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid isActive filter")
			return
		}
		isActive = &parsed
	}

	users, err := h.service.ListUsers(r.Context(), role, isActive)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := &ListUsersResponse{
		Users: make([]*UserResponse, 0, len(users)),
		Total: len(users),
	}
	for _, user := range users {
		resp.Users = append(resp.Users, userModelToResponse(user))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetUser returns a single user's record; self or admin only
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	user, err := h.service.GetByID(r.Context(), userID, identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userModelToResponse(user))
}

// UpdateUser applies an administrative update to a user
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	input := services.AdminUpdateInput{
		BusinessName: req.BusinessName,
		Province:     req.Province,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		Password:     req.Password,
		IsActive:     req.IsActive,
	}
	if req.Role != nil {
		role, err := models.ParseRole(*req.Role)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid role")
			return
		}
		input.Role = &role
	}

	user, err := h.service.UpdateByAdmin(r.Context(), userID, input, identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userModelToResponse(user))
}

// DeleteUser soft-deletes a user
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	if err := h.service.DeleteByAdmin(r.Context(), userID, identity.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
