package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/store"
)

// usernamePattern constrains account names to 3-50 characters of letters,
// digits, underscore and hyphen.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

const minPasswordLength = 4

// UserAPI serves /api/admin/users.
type UserAPI struct {
	users store.UserStore
	rules store.RuleStore
}

// NewUserAPI wires the user-management API.
func NewUserAPI(users store.UserStore, rules store.RuleStore) *UserAPI {
	return &UserAPI{users: users, rules: rules}
}

// CreateUserRequest is the POST body for a new account.
type CreateUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
}

// UpdateUserRequest carries the mutable account fields; nil means keep.
type UpdateUserRequest struct {
	DisplayName *string `json:"displayName"`
	IsAdmin     *bool   `json:"isAdmin"`
	Enabled     *bool   `json:"enabled"`
}

// UpdatePasswordRequest is the PUT body for a password change.
type UpdatePasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
}

// UserResponse is the API projection of an account. Passwords are never
// included.
type UserResponse struct {
	Username        string  `json:"username"`
	DisplayName     string  `json:"displayName"`
	Enabled         bool    `json:"enabled"`
	IsAdmin         bool    `json:"isAdmin"`
	CreatedAt       string  `json:"createdAt"`
	LastLoginAt     *string `json:"lastLoginAt"`
	PermissionCount int     `json:"permissionCount"`
}

// UserListResponse wraps the account list.
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}

func (a *UserAPI) toResponse(ctx context.Context, user store.User) UserResponse {
	var lastLogin *string
	if user.LastLoginAt != nil {
		s := user.LastLoginAt.UTC().Format(time.RFC3339)
		lastLogin = &s
	}

	count := 0
	if rules, err := a.rules.RulesFor(ctx, user.Username); err == nil {
		count = len(rules)
	}

	return UserResponse{
		Username:        user.Username,
		DisplayName:     user.DisplayName,
		Enabled:         user.Enabled,
		IsAdmin:         user.IsAdmin,
		CreatedAt:       user.CreatedAt.UTC().Format(time.RFC3339),
		LastLoginAt:     lastLogin,
		PermissionCount: count,
	}
}

// List handles GET /api/admin/users.
func (a *UserAPI) List(c *gin.Context) {
	users, err := a.users.List(c.Request.Context())
	if err != nil {
		logger.Error("failed to list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, a.toResponse(c.Request.Context(), user))
	}
	c.JSON(http.StatusOK, UserListResponse{Users: responses, Total: len(responses)})
}

// Get handles GET /api/admin/users/:username.
func (a *UserAPI) Get(c *gin.Context) {
	username := c.Param("username")

	user, err := a.users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("User not found: %s", username)})
			return
		}
		logger.Error("failed to look up user %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, a.toResponse(c.Request.Context(), *user))
}

// Create handles POST /api/admin/users.
func (a *UserAPI) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !usernamePattern.MatchString(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid username. Use 3-50 characters: letters, numbers, underscore, hyphen",
		})
		return
	}

	if len(req.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 4 characters"})
		return
	}

	user := store.User{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Enabled:     true,
		IsAdmin:     req.IsAdmin,
		CreatedAt:   time.Now(),
	}

	if err := a.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Username already exists: %s", req.Username)})
			return
		}
		logger.Error("failed to create user %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, a.toResponse(c.Request.Context(), user))
}

// Update handles PUT /api/admin/users/:username. Demoting the last
// remaining admin is refused; a system without admins cannot be managed.
func (a *UserAPI) Update(c *gin.Context) {
	username := c.Param("username")

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := a.users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("User not found: %s", username)})
			return
		}
		logger.Error("failed to look up user %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if req.IsAdmin != nil && !*req.IsAdmin && user.IsAdmin {
		last, err := a.isLastAdmin(c.Request.Context())
		if err != nil {
			logger.Error("failed to count admins: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if last {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote the last admin user"})
			return
		}
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	if err := a.users.Update(c.Request.Context(), *user); err != nil {
		logger.Error("failed to update user %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, a.toResponse(c.Request.Context(), *user))
}

// Delete handles DELETE /api/admin/users/:username. The account's
// permission rules go with it; the last admin cannot be removed.
func (a *UserAPI) Delete(c *gin.Context) {
	username := c.Param("username")

	user, err := a.users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("User not found: %s", username)})
			return
		}
		logger.Error("failed to look up user %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if user.IsAdmin {
		last, err := a.isLastAdmin(c.Request.Context())
		if err != nil {
			logger.Error("failed to count admins: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if last {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete the last admin user"})
			return
		}
	}

	if _, err := a.rules.DeleteByUsername(c.Request.Context(), username); err != nil {
		logger.Error("failed to delete rules for %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := a.users.Delete(c.Request.Context(), username); err != nil {
		logger.Error("failed to delete user %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdatePassword handles PUT /api/admin/users/:username/password.
func (a *UserAPI) UpdatePassword(c *gin.Context) {
	username := c.Param("username")

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(req.NewPassword) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 4 characters"})
		return
	}

	if err := a.users.UpdatePassword(c.Request.Context(), username, req.NewPassword); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("User not found: %s", username)})
			return
		}
		logger.Error("failed to update password for %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *UserAPI) isLastAdmin(ctx context.Context) (bool, error) {
	users, err := a.users.List(ctx)
	if err != nil {
		return false, err
	}
	admins := 0
	for _, u := range users {
		if u.IsAdmin {
			admins++
		}
	}
	return admins <= 1, nil
}
