package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"videotemplate-render-service/internal/config"
	"videotemplate-render-service/internal/handlers"
	"videotemplate-render-service/internal/middleware"
)

// Setup creates and configures the Gin router. Dependencies are constructed
// by the caller (cmd/server) and handed in already wired.
func Setup(processHandler *handlers.ProcessHandler, outputHandler *handlers.OutputHandler) *gin.Engine {
	router := setupBaseRouter()

	router.GET("/health", healthCheck())
	router.GET("/api", apiDocumentation())

	router.POST("/process", processHandler.Enqueue)
	router.GET("/process/:jobId", processHandler.Status)

	router.GET("/output/:filename", outputHandler.Download)
	router.POST("/download/batch", outputHandler.BatchDownload)

	return router
}

func setupBaseRouter() *gin.Engine {
	router := gin.New()

	router.Use(otelgin.Middleware("videotemplate-render-service"))
	router.Use(middleware.Observability())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit())

	// In production, set this to the specific IP ranges of your load
	// balancers or reverse proxies. nil means no proxy headers are trusted,
	// which prevents IP spoofing if not behind a configured proxy.
	router.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.GetAllowedOrigins()
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Authorization",
		"Accept",
		"User-Agent",
		"Cache-Control",
		"Pragma",
	}
	corsConfig.AllowMethods = []string{
		"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
	}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	return router
}

func healthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"version":   "1.0",
			"timestamp": time.Now().Unix(),
		})
	}
}

func apiDocumentation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "Video Template Render Service",
			"description": "Async render-job service that composites source videos with templates into vertical/square/landscape variants",
			"endpoints": gin.H{
				"health":      "GET /health",
				"enqueue":     "POST /process",
				"status":      "GET /process/:jobId",
				"download":    "GET /output/:filename",
				"batch":       "POST /download/batch",
			},
		})
	}
}
