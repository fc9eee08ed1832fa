package router

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/handler"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/web"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(logger *slog.Logger, h *handler.Handler) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	r.Use(SecurityHeadersMiddleware())

	r.SetHTMLTemplate(web.Templates())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "legacyjobs-dashboard",
		})
	})

	r.GET("/login", h.LoginPage)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	// Dashboard pages
	pages := r.Group("/", h.RequireSession(false))
	{
		// GET / - Metrics, current page and optional parameters XML
		pages.GET("", h.Dashboard)

		// POST /nav/:action - previous, next or goto
		pages.POST("/nav/:action", h.Navigate)
	}

	// API v1 routes
	v1 := r.Group("/api/v1", h.RequireSession(true))
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - One page of jobs with the dashboard filters
			jobs.GET("", h.ListJobs)

			// GET /api/v1/jobs/:job_id/parameters - Parameters XML of a job
			jobs.GET("/:job_id/parameters", h.GetParameters)
		}
	}

	return r
}
