package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/tier"
	"github.com/voicedeck/voicedeck/internal/usage"
)

// Handler provides the privileged HTTP endpoints.
type Handler struct {
	svc        *Service
	reconciler *usage.Reconciler
}

// NewHandler creates a new admin handler.
func NewHandler(svc *Service, reconciler *usage.Reconciler) *Handler {
	return &Handler{svc: svc, reconciler: reconciler}
}

// RegisterRoutes sets up admin routes. The group is expected to carry
// auth.RequireAdmin.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants", h.CreateTenant)
	r.GET("/tenants/:id", h.GetTenant)
	r.PATCH("/tenants/:id/limits", h.UpdateLimits)
	r.PATCH("/tenants/:id/features", h.UpdateFeatures)
	r.PUT("/tenants/:id/active", h.SetActive)
	r.PUT("/tenants/:id/tier", h.ChangeTier)
	r.POST("/reconcile", h.Reconcile)
}

// CreateTenant handles POST /v1/tenants
func (h *Handler) CreateTenant(c *gin.Context) {
	var spec CreateSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and slug required"})
		return
	}

	t, err := h.svc.CreateTenant(c.Request.Context(), spec)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSlug):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_slug",
				"message": "slug must be 3-64 lowercase alphanumeric/hyphens, start/end with alphanumeric",
			})
		case errors.Is(err, ErrInvalidTier):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tier", "message": "unknown tier"})
		case errors.Is(err, tenant.ErrSlugTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "message": "slug already in use"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create tenant"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tenant": t})
}

// GetTenant handles GET /v1/tenants/:id
func (h *Handler) GetTenant(c *gin.Context) {
	t, err := h.svc.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// UpdateLimits handles PATCH /v1/tenants/:id/limits
func (h *Handler) UpdateLimits(c *gin.Context) {
	var patch LimitPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid limit patch"})
		return
	}

	t, err := h.svc.UpdateLimits(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// UpdateFeatures handles PATCH /v1/tenants/:id/features
func (h *Handler) UpdateFeatures(c *gin.Context) {
	var patch map[tier.Feature]bool
	if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "feature map required"})
		return
	}

	t, err := h.svc.UpdateFeatures(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// SetActive handles PUT /v1/tenants/:id/active
func (h *Handler) SetActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "active required"})
		return
	}

	t, err := h.svc.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// ChangeTier handles PUT /v1/tenants/:id/tier
func (h *Handler) ChangeTier(c *gin.Context) {
	var req struct {
		Tier tier.Tier `json:"tier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "tier required"})
		return
	}

	t, err := h.svc.ChangeTier(c.Request.Context(), c.Param("id"), req.Tier)
	if err != nil {
		if errors.Is(err, ErrInvalidTier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tier", "message": "unknown tier"})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// Reconcile handles POST /v1/admin/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	var req struct {
		Repair bool `json:"repair"`
	}
	_ = c.ShouldBindJSON(&req)

	results, err := h.reconciler.ReconcileAll(c.Request.Context(), req.Repair)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, tenant.ErrTenantNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
