package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/share"
)

// ShareAPI serves the admin share-management endpoints under
// /api/admin/shares. Unlike the user-facing /api/shares surface it sees and
// deletes every link regardless of owner.
type ShareAPI struct {
	service *share.Service
}

// NewShareAPI wires the admin share API.
func NewShareAPI(service *share.Service) *ShareAPI {
	return &ShareAPI{service: service}
}

// ShareListResponse is the GET /api/admin/shares body: every link plus
// active and expired tallies.
type ShareListResponse struct {
	Shares  []share.LinkResponse `json:"shares"`
	Total   int                  `json:"total"`
	Active  int                  `json:"active"`
	Expired int                  `json:"expired"`
}

// List handles GET /api/admin/shares.
func (a *ShareAPI) List(c *gin.Context) {
	links, err := a.service.ListAll(c.Request.Context())
	if err != nil {
		logger.Error("failed to list share links: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	now := time.Now()
	base := requestBaseURL(c)
	resp := ShareListResponse{Shares: make([]share.LinkResponse, 0, len(links))}
	for _, link := range links {
		resp.Shares = append(resp.Shares, share.NewLinkResponse(link, base))
		if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
			resp.Expired++
		} else {
			resp.Active++
		}
	}
	resp.Total = len(links)

	c.JSON(http.StatusOK, resp)
}

// Get handles GET /api/admin/shares/:id.
func (a *ShareAPI) Get(c *gin.Context) {
	id := c.Param("id")
	link, err := a.service.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error("failed to look up share link: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Share link not found: " + id})
		return
	}

	c.JSON(http.StatusOK, share.NewLinkResponse(*link, requestBaseURL(c)))
}

// Delete handles DELETE /api/admin/shares/:id.
func (a *ShareAPI) Delete(c *gin.Context) {
	id := c.Param("id")
	link, err := a.service.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error("failed to look up share link: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Share link not found: " + id})
		return
	}

	if err := a.service.Delete(c.Request.Context(), id); err != nil {
		logger.Error("failed to delete share link %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete share link"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteExpired handles DELETE /api/admin/shares/expired.
func (a *ShareAPI) DeleteExpired(c *gin.Context) {
	deleted, err := a.service.CleanupExpired(c.Request.Context())
	if err != nil {
		logger.Error("failed to delete expired share links: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
		"message": fmt.Sprintf("%d expired share links deleted", deleted),
	})
}

// requestBaseURL rebuilds the externally visible origin for share URLs.
func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}
