// backend-go/internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/api/handlers"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/api/middleware"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/service"
)

type Services struct {
	Analysis *service.AnalysisService
	DataDir  string
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Analysis != nil {
		analysisHandler := handlers.NewAnalysisHandler(services.Analysis, services.DataDir)
		analysisGroup := apiGroup.Group("/analysis")
		{
			analysisGroup.POST("/run", analysisHandler.TriggerRun)
			analysisGroup.GET("/runs", analysisHandler.ListRuns)
			analysisGroup.GET("/runs/:id", analysisHandler.GetRun)
			analysisGroup.GET("/runs/:id/report", analysisHandler.GetRunReport)
			analysisGroup.GET("/reports/latest", analysisHandler.GetLatestReport)
			analysisGroup.GET("/profiles/due_soon", analysisHandler.GetDueSoon)
			analysisGroup.GET("/profiles/summary", analysisHandler.GetProfileSummaries)
			analysisGroup.GET("/forecast/:medication", analysisHandler.GetMedicationForecast)
			analysisGroup.GET("/recommendations", analysisHandler.GetRecommendations)
			analysisGroup.GET("/signals/adjustments", analysisHandler.GetCategoryAdjustments)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
