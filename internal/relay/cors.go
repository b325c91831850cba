package relay

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storydeck/storydeck/internal/openai"
)

// corsMiddleware answers preflight requests and stamps CORS headers. With no
// configured origins every origin is allowed, matching a public demo
// deployment; otherwise only listed origins are echoed back.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	allowHeaders := strings.Join([]string{
		"Content-Type",
		"Authorization",
		openai.HeaderUserKey,
	}, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowed) == 0:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Expose-Headers", strings.Join(rateLimitHeaders, ", "))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
