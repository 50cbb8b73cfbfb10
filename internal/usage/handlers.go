package usage

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/validation"
)

// Handler provides HTTP endpoints for the usage ledger.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a new usage handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes sets up usage ledger routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants/:id/usage", h.RecordUsage)
	r.GET("/tenants/:id/usage", h.GetHistory)
}

// RecordUsage handles POST /v1/tenants/:id/usage
//
// The endpoint is idempotent per key: a timed-out caller retries with the
// same key and cannot double-count.
func (h *Handler) RecordUsage(c *gin.Context) {
	var req struct {
		MinutesDelta   int64  `json:"minutesDelta" binding:"required"`
		IdempotencyKey string `json:"idempotencyKey" binding:"required"`
		Source         string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "minutesDelta and idempotencyKey required"})
		return
	}

	newUsed, err := h.ledger.RecordUsage(
		c.Request.Context(),
		c.Param("id"),
		req.MinutesDelta,
		validation.SanitizeString(req.IdempotencyKey, 255),
		validation.SanitizeString(req.Source, 255),
	)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		case errors.Is(err, tenant.ErrUpdateConflict):
			// Retryable: the same key cannot double-apply.
			c.JSON(http.StatusConflict, gin.H{"error": "update_conflict", "message": "concurrent update detected, retry with the same idempotency key"})
		case errors.Is(err, ErrMissingIdempotencyKey), errors.Is(err, ErrZeroDelta):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to record usage"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"minutesUsed": newUsed})
}

// GetHistory handles GET /v1/tenants/:id/usage
func (h *Handler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, next, hasMore, err := h.ledger.History(
		c.Request.Context(), c.Param("id"), limit, c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid cursor"})
		return
	}

	resp := gin.H{"records": records, "hasMore": hasMore}
	if next != "" {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}
