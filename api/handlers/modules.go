package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parceltrace/parceltrace/modules/registry"
)

type toggleModuleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ListModules returns every registered module with its persisted enabled
// flag and live status payload.
func ListModules(moduleRegistry *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"modules": moduleRegistry.StatusReport(c.Request.Context()),
		})
	}
}

// ToggleModule flips a module's enabled flag and runs its lifecycle hook.
func ToggleModule(moduleRegistry *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")

		var req toggleModuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must contain an enabled flag"})
			return
		}

		if moduleRegistry.Get(key) == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown module: " + key})
			return
		}

		if err := moduleRegistry.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"key":     key,
			"enabled": *req.Enabled,
		})
	}
}
