package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhldev/extraction-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/healthz", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"reason": "database unreachable",
				})
				return
			}
		}
		if deps.RabbitClient != nil && !deps.RabbitClient.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"reason": "rabbitmq disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "extraction-api-service",
		})
	})

	extractionHandler := handler.NewExtractionHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		extractions := v1.Group("/extractions")
		{
			// POST /api/v1/extractions - Submit a document for extraction
			extractions.POST("", extractionHandler.CreateExtraction)

			// GET /api/v1/extractions/:job_id - Get extraction job status
			extractions.GET("/:job_id", extractionHandler.GetExtraction)
		}

		records := v1.Group("/records")
		{
			// GET /api/v1/records/:record_id/attachments - Materialized attachments
			records.GET("/:record_id/attachments", extractionHandler.GetRecordAttachments)
		}

		sessions := v1.Group("/parse-sessions")
		{
			// POST /api/v1/parse-sessions/:session_id/confirm - Apply pending blocks
			sessions.POST("/:session_id/confirm", extractionHandler.ConfirmParseSession)

			// POST /api/v1/parse-sessions/:session_id/discard - Drop pending blocks
			sessions.POST("/:session_id/discard", extractionHandler.DiscardParseSession)
		}
	}

	return r
}
