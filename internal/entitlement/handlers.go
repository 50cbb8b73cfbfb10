package entitlement

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/tier"
)

// Handler provides HTTP endpoints for entitlement reads and feature checks.
type Handler struct {
	svc *Service
}

// NewHandler creates a new entitlement handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up entitlement routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:id/entitlements", h.GetEntitlements)
	r.GET("/tenants/:id/features/:feature", h.CheckFeature)
}

// GetEntitlements handles GET /v1/tenants/:id/entitlements
func (h *Handler) GetEntitlements(c *gin.Context) {
	eff, err := h.svc.GetEffective(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to resolve entitlements"})
		return
	}
	c.JSON(http.StatusOK, eff)
}

// CheckFeature handles GET /v1/tenants/:id/features/:feature
func (h *Handler) CheckFeature(c *gin.Context) {
	decision, err := h.svc.CanAccessFeature(c.Request.Context(), c.Param("id"), tier.Feature(c.Param("feature")))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "feature check failed"})
		return
	}
	c.JSON(http.StatusOK, decision)
}
