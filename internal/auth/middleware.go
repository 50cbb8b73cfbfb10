// Package auth guards the admin surface.
//
// Voicedeck's tenant-facing authorization lives at the API gateway; the
// governance core only needs to protect its own override endpoints. A
// single shared secret in the X-Admin-Secret header is enough for that.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAdminSecret carries the shared admin secret on override requests.
const HeaderAdminSecret = "X-Admin-Secret"

// RequireAdmin rejects requests that do not present the configured admin
// secret. Comparison is constant-time. With an empty secret (local dev,
// tests) the admin surface is open; config validation refuses to start
// production without one.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		got := c.GetHeader(HeaderAdminSecret)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "admin secret required",
				"code":  "unauthorized",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid admin secret",
				"code":  "forbidden",
			})
			return
		}

		c.Next()
	}
}
