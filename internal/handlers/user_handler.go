package handlers

import (
	"net/http"

	"idea-portal/internal/service"
)

// CreateUserRequest is the body for provisioning an account
type CreateUserRequest struct {
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=8"`
	FirstName  string   `json:"first_name" validate:"required,max=100"`
	LastName   string   `json:"last_name" validate:"max=100"`
	Department string   `json:"department" validate:"max=100"`
	Roles      []string `json:"roles" validate:"required"`
}

// UserHandler handles account requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetProfile gets the current user's profile
// @Summary Get user profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.UserProfile
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	profile, err := h.userService.Profile(r.Context(), p)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// CreateUser provisions an account (admin only)
// @Summary Create user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body CreateUserRequest true "Account"
// @Success 201 {object} service.UserProfile
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Failure 409 {object} ErrorResponse "Email already in use"
// @Router /admin/users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.userService.CreateUser(r.Context(), p, service.NewUser{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Department: req.Department,
		Roles:      req.Roles,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, profile)
}
