// backend-go/internal/api/handlers/analysis_handler.go
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/report"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/service"
)

const dateLayout = "2006-01-02"

type AnalysisHandler struct {
	service *service.AnalysisService
	dataDir string
}

func NewAnalysisHandler(service *service.AnalysisService, dataDir string) *AnalysisHandler {
	return &AnalysisHandler{service: service, dataDir: dataDir}
}

type runRequest struct {
	AnalysisDate string `json:"analysis_date"`
	Source       string `json:"source"`
	DataDir      string `json:"data_dir"`
}

// TriggerRun executes a full analysis and returns the run record with
// the forecast summary. An empty body runs over the configured data
// directory as of today.
func (h *AnalysisHandler) TriggerRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var analysisDate time.Time
	if req.AnalysisDate != "" {
		parsed, err := time.Parse(dateLayout, req.AnalysisDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "analysis_date must be YYYY-MM-DD"})
			return
		}
		analysisDate = parsed
	}

	var (
		payload *report.Payload
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(req.Source)) {
	case "", "csv":
		dir := req.DataDir
		if dir == "" {
			dir = h.dataDir
		}
		payload, err = h.service.RunFromCSV(c.Request.Context(), dir, analysisDate)
	case "db", "database":
		payload, err = h.service.RunFromStore(c.Request.Context(), analysisDate)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "source must be csv or db"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("analysis run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis run failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":     payload.Run,
		"summary": payload.Forecasting.Summary,
	})
}

// GetRun returns one run record
func (h *AnalysisHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err, "failed to fetch run")
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListRuns returns run records, newest first
func (h *AnalysisHandler) ListRuns(c *gin.Context) {
	var filter domain.RunFilter

	if stage := strings.TrimSpace(c.Query("stage")); stage != "" {
		filter.Stage = domain.RunStage(strings.ToLower(stage))
		if !domain.ValidRunStage(filter.Stage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stage value"})
			return
		}
	}
	if since := strings.TrimSpace(c.Query("since")); since != "" {
		parsed, err := time.Parse(dateLayout, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
			return
		}
		filter.Since = parsed
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	runs, err := h.service.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "failed to fetch runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// GetRunReport returns the full report payload for one run
func (h *AnalysisHandler) GetRunReport(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	payload, err := h.service.ReportByRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err, "failed to fetch report")
		return
	}

	c.JSON(http.StatusOK, payload)
}

// GetLatestReport returns the most recent report payload
func (h *AnalysisHandler) GetLatestReport(c *gin.Context) {
	payload, err := h.service.LatestReport(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch latest report")
		return
	}

	c.JSON(http.StatusOK, payload)
}

// GetDueSoon returns profiles whose predicted refill falls inside the
// window
func (h *AnalysisHandler) GetDueSoon(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	profiles, err := h.service.DueSoon(c.Request.Context(), days)
	if err != nil {
		respondError(c, err, "failed to fetch due-soon profiles")
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles, "total": len(profiles)})
}

// GetProfileSummaries returns per-medication profile aggregates
func (h *AnalysisHandler) GetProfileSummaries(c *gin.Context) {
	summaries, err := h.service.ProfileSummaries(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch profile summaries")
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetMedicationForecast returns the forecast records for one medication
func (h *AnalysisHandler) GetMedicationForecast(c *gin.Context) {
	medication := strings.TrimSpace(c.Param("medication"))
	if medication == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "medication is required"})
		return
	}

	demand, err := h.service.ForecastFor(c.Request.Context(), medication)
	if err != nil {
		respondError(c, err, "failed to fetch forecast")
		return
	}

	c.JSON(http.StatusOK, demand)
}

// GetRecommendations returns the latest order recommendations with an
// optional priority filter
func (h *AnalysisHandler) GetRecommendations(c *gin.Context) {
	priority := strings.TrimSpace(c.Query("priority"))
	if priority != "" {
		if _, ok := domain.ParseOrderPriority(priority); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority value"})
			return
		}
	}

	orders, err := h.service.Recommendations(c.Request.Context(), priority)
	if err != nil {
		respondError(c, err, "failed to fetch recommendations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": orders, "total": len(orders)})
}

// GetCategoryAdjustments returns the demand multipliers currently in
// effect per category
func (h *AnalysisHandler) GetCategoryAdjustments(c *gin.Context) {
	adjustments, err := h.service.CategoryAdjustments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect signals", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"adjustments": adjustments, "total": len(adjustments)})
}

func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrReportNotFound),
		errors.Is(err, domain.ErrNoForecast),
		errors.Is(err, domain.ErrNoProfiles):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
	}
}
