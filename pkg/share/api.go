package share

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/auth"
	"github.com/davshare/davshare/pkg/pathres"
	"github.com/davshare/davshare/pkg/store"
)

// API serves the authenticated share-management endpoints under
// /api/shares. Every operation is scoped to the calling principal: users
// only ever see and delete their own links.
type API struct {
	service *Service
}

// NewAPI wires the share-management API.
func NewAPI(service *Service) *API {
	return &API{service: service}
}

// CreateRequest is the POST /api/shares body.
type CreateRequest struct {
	Path           string  `json:"path" binding:"required"`
	ExpiresInHours *int64  `json:"expiresInHours"`
	Password       *string `json:"password"`
	MaxAccessCount *int    `json:"maxAccessCount"`
	CanWrite       bool    `json:"canWrite"`
}

// LinkResponse is the API projection of a share link. The stored password
// is never echoed back; only its presence is.
type LinkResponse struct {
	ID             string  `json:"id"`
	Token          string  `json:"token"`
	Path           string  `json:"path"`
	ResourceType   string  `json:"resourceType"`
	URL            string  `json:"url"`
	CreatedAt      string  `json:"createdAt"`
	ExpiresAt      *string `json:"expiresAt"`
	HasPassword    bool    `json:"hasPassword"`
	MaxAccessCount *int    `json:"maxAccessCount"`
	AccessCount    int     `json:"accessCount"`
	CanRead        bool    `json:"canRead"`
	CanWrite       bool    `json:"canWrite"`
}

// NewLinkResponse projects a stored link into the API shape. Shared with
// the admin surface, which renders the same projection for every owner.
func NewLinkResponse(link store.ShareLink, baseURL string) LinkResponse {
	var expiresAt *string
	if link.ExpiresAt != nil {
		s := link.ExpiresAt.UTC().Format(time.RFC3339)
		expiresAt = &s
	}
	return LinkResponse{
		ID:             link.ID,
		Token:          link.Token,
		Path:           link.ResourcePath,
		ResourceType:   string(link.ResourceType),
		URL:            fmt.Sprintf("%s/s/%s", baseURL, link.Token),
		CreatedAt:      link.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:      expiresAt,
		HasPassword:    link.Password != nil,
		MaxAccessCount: link.MaxAccessCount,
		AccessCount:    link.AccessCount,
		CanRead:        link.CanRead,
		CanWrite:       link.CanWrite,
	}
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}

func requirePrincipal(c *gin.Context) (string, bool) {
	username := auth.Username(c)
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return "", false
	}
	return username, true
}

// Create handles POST /api/shares.
func (a *API) Create(c *gin.Context) {
	username, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	link, err := a.service.Create(c.Request.Context(), username, req.Path, CreateOptions{
		ExpiresInHours: req.ExpiresInHours,
		Password:       req.Password,
		MaxAccessCount: req.MaxAccessCount,
		CanWrite:       req.CanWrite,
	})
	if err != nil {
		switch {
		case errors.Is(err, pathres.ErrAccessDenied), errors.Is(err, ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		case errors.Is(err, ErrResourceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
		default:
			logger.Error("failed to create share link: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, NewLinkResponse(*link, baseURL(c)))
}

// List handles GET /api/shares.
func (a *API) List(c *gin.Context) {
	username, ok := requirePrincipal(c)
	if !ok {
		return
	}

	links, err := a.service.ListByUser(c.Request.Context(), username)
	if err != nil {
		logger.Error("failed to list share links for %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	base := baseURL(c)
	responses := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		responses = append(responses, NewLinkResponse(link, base))
	}
	c.JSON(http.StatusOK, responses)
}

// Get handles GET /api/shares/:id. Links owned by other users are reported
// as absent, not forbidden.
func (a *API) Get(c *gin.Context) {
	username, ok := requirePrincipal(c)
	if !ok {
		return
	}

	link, err := a.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Error("failed to look up share link: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if link == nil || link.CreatedBy != username {
		c.JSON(http.StatusNotFound, gin.H{"error": "Share link not found"})
		return
	}

	c.JSON(http.StatusOK, NewLinkResponse(*link, baseURL(c)))
}

// Delete handles DELETE /api/shares/:id.
func (a *API) Delete(c *gin.Context) {
	username, ok := requirePrincipal(c)
	if !ok {
		return
	}

	id := c.Param("id")
	link, err := a.service.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error("failed to look up share link: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if link == nil || link.CreatedBy != username {
		c.JSON(http.StatusNotFound, gin.H{"error": "Share link not found"})
		return
	}

	if err := a.service.Delete(c.Request.Context(), id); err != nil {
		logger.Error("failed to delete share link: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}
