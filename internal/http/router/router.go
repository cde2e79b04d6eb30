package router

import (
	"github.com/gin-gonic/gin"

	"pulsedash.app/harvester/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, jobHandler *handler.JobHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	jobs := router.Group("/jobs")
	{
		jobs.POST("", jobHandler.Submit)
		jobs.GET("/:id", jobHandler.GetStatus)
		jobs.GET("/:id/export", jobHandler.Export)
	}
}
