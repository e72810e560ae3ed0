package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	h := NewHandlers(deps)

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/cache/stats", h.CacheStats)
		api.GET("/sorgu-tipleri", h.QueryTypes)

		// Portal runs; each one holds its session for the duration.
		uyap := api.Group("/uyap")
		{
			uyap.POST("/login", h.Login)
			uyap.POST("/logout", h.Logout)
			uyap.GET("/status", h.Status)
			uyap.POST("/search-files", h.SearchFiles)
			uyap.POST("/extract-data", h.ExtractData)
			uyap.POST("/query", h.Query)
			uyap.POST("/trigger-sorgulama", h.TriggerSorgulama)
		}

		// Stored data
		api.GET("/cases", h.ListCases)
		api.GET("/cases/:id", h.GetCase)
		api.GET("/borclular/:id/sorgular", h.DebtorResults)
		api.GET("/borclular/:id/sorgular/:tip", h.DebtorResult)
	}
}
