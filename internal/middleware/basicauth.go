package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

const realm = `Basic realm="Admin Area"`

// BasicAuth guards the admin HTTP surface. Malformed credentials get 400,
// missing or wrong ones a 401 challenge.
func BasicAuth(user, pass string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			challenge(c)
			return
		}
		scheme, payload, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Basic") {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed authorization header"})
			return
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed credentials"})
			return
		}
		u, p, ok := strings.Cut(string(raw), ":")
		if !ok || hasControl(u) || hasControl(p) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed credentials"})
			return
		}

		uok := subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1
		pok := subtle.ConstantTimeCompare([]byte(p), []byte(pass)) == 1
		if !uok || !pok {
			challenge(c)
			return
		}
		c.Next()
	}
}

func challenge(c *gin.Context) {
	c.Header("WWW-Authenticate", realm)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
