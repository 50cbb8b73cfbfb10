package quota

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voicedeck/voicedeck/internal/entitlement"
	"github.com/voicedeck/voicedeck/internal/tenant"
)

// Handler provides HTTP endpoints for the quota gates.
type Handler struct {
	enforcer *Enforcer
}

// NewHandler creates a new quota handler.
func NewHandler(enforcer *Enforcer) *Handler {
	return &Handler{enforcer: enforcer}
}

// RegisterRoutes sets up quota check routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:id/quota/agents", h.check(h.enforcer.CanCreateAgent))
	r.GET("/tenants/:id/quota/campaigns", h.check(h.enforcer.CanCreateCampaign))
	r.GET("/tenants/:id/quota/calls", h.check(h.enforcer.CanStartConcurrentCall))
	r.GET("/tenants/:id/quota/minutes", h.check(h.enforcer.HasMinutesRemaining))
}

func (h *Handler) check(fn func(context.Context, string) (entitlement.Decision, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := fn(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "quota check failed"})
			return
		}
		c.JSON(http.StatusOK, decision)
	}
}
