package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parceltrace/parceltrace/modules/registry"
)

// ModuleGate rejects requests to a module's routes while the module is
// disabled. The enabled flag is read per request so an admin toggle takes
// effect immediately.
func ModuleGate(moduleRegistry *registry.Registry, moduleKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !moduleRegistry.IsEnabled(c.Request.Context(), moduleKey) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "module " + moduleKey + " is disabled",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
