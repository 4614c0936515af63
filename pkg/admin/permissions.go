package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/store"
)

// PermissionAPI serves /api/admin/permissions.
type PermissionAPI struct {
	users store.UserStore
	rules store.RuleStore
}

// NewPermissionAPI wires the permission-management API.
func NewPermissionAPI(users store.UserStore, rules store.RuleStore) *PermissionAPI {
	return &PermissionAPI{users: users, rules: rules}
}

// CreatePermissionRequest is the POST body for a new rule.
type CreatePermissionRequest struct {
	Username  string `json:"username" binding:"required"`
	Path      string `json:"path" binding:"required"`
	CanList   bool   `json:"canList"`
	CanRead   bool   `json:"canRead"`
	CanWrite  bool   `json:"canWrite"`
	CanDelete bool   `json:"canDelete"`
	CanMkcol  bool   `json:"canMkcol"`
	Deny      bool   `json:"deny"`
}

// UpdatePermissionRequest carries the mutable rule flags; nil means keep.
// The subject and path of a rule never change after creation.
type UpdatePermissionRequest struct {
	CanList   *bool `json:"canList"`
	CanRead   *bool `json:"canRead"`
	CanWrite  *bool `json:"canWrite"`
	CanDelete *bool `json:"canDelete"`
	CanMkcol  *bool `json:"canMkcol"`
	Deny      *bool `json:"deny"`
}

// PermissionResponse is the API projection of a rule.
type PermissionResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Path      string `json:"path"`
	CanList   bool   `json:"canList"`
	CanRead   bool   `json:"canRead"`
	CanWrite  bool   `json:"canWrite"`
	CanDelete bool   `json:"canDelete"`
	CanMkcol  bool   `json:"canMkcol"`
	Deny      bool   `json:"deny"`
}

// PermissionListResponse wraps the rule list.
type PermissionListResponse struct {
	Rules []PermissionResponse `json:"rules"`
	Total int                  `json:"total"`
}

func toPermissionResponse(rule store.PermissionRule) PermissionResponse {
	return PermissionResponse{
		ID:        rule.ID,
		Username:  rule.Username,
		Path:      rule.Path,
		CanList:   rule.CanList,
		CanRead:   rule.CanRead,
		CanWrite:  rule.CanWrite,
		CanDelete: rule.CanDelete,
		CanMkcol:  rule.CanMkcol,
		Deny:      rule.Deny,
	}
}

// List handles GET /api/admin/permissions, optionally filtered by the
// username query parameter.
func (a *PermissionAPI) List(c *gin.Context) {
	var (
		rules []store.PermissionRule
		err   error
	)
	if username, ok := c.GetQuery("username"); ok {
		rules, err = a.rules.RulesFor(c.Request.Context(), username)
	} else {
		rules, err = a.rules.List(c.Request.Context())
	}
	if err != nil {
		logger.Error("failed to list permission rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]PermissionResponse, 0, len(rules))
	for _, rule := range rules {
		responses = append(responses, toPermissionResponse(rule))
	}
	c.JSON(http.StatusOK, PermissionListResponse{Rules: responses, Total: len(responses)})
}

// GetByUser handles GET /api/admin/permissions/user/:username.
func (a *PermissionAPI) GetByUser(c *gin.Context) {
	username := c.Param("username")

	if _, err := a.users.FindByUsername(c.Request.Context(), username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("User not found: %s", username)})
			return
		}
		logger.Error("failed to look up user %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	rules, err := a.rules.RulesFor(c.Request.Context(), username)
	if err != nil {
		logger.Error("failed to list rules for %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]PermissionResponse, 0, len(rules))
	for _, rule := range rules {
		responses = append(responses, toPermissionResponse(rule))
	}
	c.JSON(http.StatusOK, PermissionListResponse{Rules: responses, Total: len(responses)})
}

// Get handles GET /api/admin/permissions/:id.
func (a *PermissionAPI) Get(c *gin.Context) {
	id := c.Param("id")

	rule, err := a.findRule(c, id)
	if rule == nil || err != nil {
		return
	}
	c.JSON(http.StatusOK, toPermissionResponse(*rule))
}

// Create handles POST /api/admin/permissions. The subject must be an
// existing account and the path must be an absolute, traversal-free
// prefix; a second rule for the same user and path is a conflict.
func (a *PermissionAPI) Create(c *gin.Context) {
	var req CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, err := a.users.FindByUsername(c.Request.Context(), req.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("User not found: %s", req.Username)})
			return
		}
		logger.Error("failed to look up user %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !isValidRulePath(req.Path) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path. Must start with /"})
		return
	}

	existing, err := a.rules.RulesFor(c.Request.Context(), req.Username)
	if err != nil {
		logger.Error("failed to list rules for %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	for _, rule := range existing {
		if rule.Path == req.Path {
			c.JSON(http.StatusConflict, gin.H{
				"error": fmt.Sprintf("Permission rule already exists for %s on %s", req.Username, req.Path),
			})
			return
		}
	}

	rule, err := a.rules.Create(c.Request.Context(), store.PermissionRule{
		Username:  req.Username,
		Path:      req.Path,
		CanList:   req.CanList,
		CanRead:   req.CanRead,
		CanWrite:  req.CanWrite,
		CanDelete: req.CanDelete,
		CanMkcol:  req.CanMkcol,
		Deny:      req.Deny,
	})
	if err != nil {
		logger.Error("failed to create permission rule: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, toPermissionResponse(*rule))
}

// Update handles PUT /api/admin/permissions/:id.
func (a *PermissionAPI) Update(c *gin.Context) {
	id := c.Param("id")

	var req UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	rule, err := a.findRule(c, id)
	if rule == nil || err != nil {
		return
	}

	if req.CanList != nil {
		rule.CanList = *req.CanList
	}
	if req.CanRead != nil {
		rule.CanRead = *req.CanRead
	}
	if req.CanWrite != nil {
		rule.CanWrite = *req.CanWrite
	}
	if req.CanDelete != nil {
		rule.CanDelete = *req.CanDelete
	}
	if req.CanMkcol != nil {
		rule.CanMkcol = *req.CanMkcol
	}
	if req.Deny != nil {
		rule.Deny = *req.Deny
	}

	if err := a.rules.Update(c.Request.Context(), *rule); err != nil {
		logger.Error("failed to update permission rule %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, toPermissionResponse(*rule))
}

// Delete handles DELETE /api/admin/permissions/:id.
func (a *PermissionAPI) Delete(c *gin.Context) {
	id := c.Param("id")

	rule, err := a.findRule(c, id)
	if rule == nil || err != nil {
		return
	}

	if err := a.rules.Delete(c.Request.Context(), id); err != nil {
		logger.Error("failed to delete permission rule %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// findRule looks up a rule by ID and writes the failure response itself.
// Returns nil when the caller should stop.
func (a *PermissionAPI) findRule(c *gin.Context, id string) (*store.PermissionRule, error) {
	rules, err := a.rules.List(c.Request.Context())
	if err != nil {
		logger.Error("failed to list permission rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, err
	}
	for i := range rules {
		if rules[i].ID == id {
			return &rules[i], nil
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Permission rule not found: %s", id)})
	return nil, nil
}

func isValidRulePath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	return !strings.Contains(path, "..")
}
