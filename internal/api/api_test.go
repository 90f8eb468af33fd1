package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/report"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/service"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/signals"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/synthetic"
)

var apiDate = time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	data := synthetic.NewGenerator(synthetic.Config{Patients: 10, Months: 6, Seed: 11, AsOf: apiDate}).Generate()
	require.NoError(t, data.WriteCSV(dataDir))

	cfg := config.DefaultPipelineConfig()
	cfg.WorkerCount = 2
	store := report.NewStore(t.TempDir(), nil)
	provider := signals.NewSeasonalProvider(config.SignalsConfig{Region: "greece"})
	svc := service.NewAnalysisService(cfg, provider, store, nil, nil, nil)

	return NewRouter(&Services{Analysis: svc, DataDir: dataDir}, nil)
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func triggerRun(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/analysis/run", gin.H{"analysis_date": "2025-02-10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Run struct {
			ID    string `json:"id"`
			Stage string `json:"stage"`
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "complete", resp.Run.Stage)
	return resp.Run.ID
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestTriggerRunAndFetchReport(t *testing.T) {
	router := newTestRouter(t)
	runID := triggerRun(t, router)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analysis/reports/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload report.Payload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, runID, payload.Run.ID.String())
	assert.NotEmpty(t, payload.Optimization.OrderRecommendations)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/runs/"+runID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/runs/"+runID+"/report", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTriggerRunValidation(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/analysis/run", gin.H{"analysis_date": "02/10/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/analysis/run", gin.H{"source": "carrier-pigeon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRuns(t *testing.T) {
	router := newTestRouter(t)
	runID := triggerRun(t, router)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analysis/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs []struct {
			ID string `json:"id"`
		} `json:"runs"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, runID, resp.Runs[0].ID)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/runs?stage=abandoned", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	router := newTestRouter(t)
	triggerRun(t, router)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analysis/profiles/due_soon?days=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/profiles/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []struct {
		Medication string `json:"medication"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	assert.NotEmpty(t, summaries)
}

func TestMedicationForecastEndpoint(t *testing.T) {
	router := newTestRouter(t)
	triggerRun(t, router)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analysis/reports/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payload report.Payload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Forecasting.MedicationForecasts)
	medication := payload.Forecasting.MedicationForecasts[0].Medication

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/forecast/"+url.PathEscape(medication), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var demand struct {
		Medication  string  `json:"medication"`
		TotalDemand float64 `json:"total_predicted_demand"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &demand))
	assert.Equal(t, medication, demand.Medication)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/forecast/Unobtainium", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecommendationsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	triggerRun(t, router)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analysis/recommendations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Recommendations []struct {
			Priority string `json:"priority"`
		} `json:"recommendations"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, len(resp.Recommendations), resp.Total)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/recommendations?priority=critical", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/recommendations?priority=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignalAdjustmentsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analysis/signals/adjustments", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "adjustments")
}

func TestReadEndpointsBeforeFirstRun(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analysis/reports/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/recommendations", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/runs", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/analysis/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
