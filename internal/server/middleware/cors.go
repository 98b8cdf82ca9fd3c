package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderInternalToken carries the caller's shared secret.
const HeaderInternalToken = "x-internal-token"

// CORS allows any origin to POST with a JSON body and the internal token header.
// Preflight requests are answered with 200 and no body.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+HeaderInternalToken)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
