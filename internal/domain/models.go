// backend-go/internal/domain/models.go
package domain

import "time"

// RefillEvent represents a single dispensing record for a patient.
type RefillEvent struct {
	PatientID  string    `json:"patient_id" db:"patient_id"`
	Medication string    `json:"medication" db:"medication"`
	FillDate   time.Time `json:"fill_date" db:"fill_date"`
	Quantity   int       `json:"quantity" db:"quantity"`
	DaysSupply int       `json:"days_supply,omitempty" db:"days_supply"` // 0 when not reported
}

// RefillPattern holds the interval statistics for one patient/medication pair.
type RefillPattern struct {
	AverageIntervalDays float64 `json:"average_interval_days"`
	StdDeviationDays    float64 `json:"std_deviation_days"`
	TotalRefills        int     `json:"total_refills"`
	Consistency         float64 `json:"consistency_score"` // 1 - cv, clamped to [0,1]
}

// BehaviorClass classifies how predictable a patient's refill behavior is.
type BehaviorClass string

const (
	BehaviorHighlyRegular    BehaviorClass = "highly_regular"
	BehaviorRegular          BehaviorClass = "regular"
	BehaviorIrregular        BehaviorClass = "irregular"
	BehaviorNewPatient       BehaviorClass = "new_patient"
	BehaviorInsufficientData BehaviorClass = "insufficient_data"
)

// RefillPrediction is the expected next fill for a profiled pair.
// Only present once a pair has enough history.
type RefillPrediction struct {
	ExpectedDate      time.Time `json:"expected_date"`
	EarliestDate      time.Time `json:"earliest_date"`
	LatestDate        time.Time `json:"latest_date"`
	Confidence        float64   `json:"confidence"`
	DaysUntilExpected int       `json:"days_until_expected"` // negative when overdue
}

// PatientMedicationProfile is the full behavioral profile for one
// patient/medication pair, snapshotted at an analysis date.
type PatientMedicationProfile struct {
	PatientID    string            `json:"patient_id"`
	Medication   string            `json:"medication"`
	Behavior     BehaviorClass     `json:"behavior_class"`
	Pattern      RefillPattern     `json:"pattern"`
	Prediction   *RefillPrediction `json:"prediction,omitempty"`
	LastFillDate time.Time         `json:"last_fill_date"`
	LastQuantity int               `json:"last_quantity"`
	IsDueSoon    bool              `json:"is_due_soon"`
	RiskOfLapse  float64           `json:"risk_of_lapse"`
	AnalysisDate time.Time         `json:"analysis_date"`
}

// ProfilingResult aggregates all profiles from one profiling pass.
type ProfilingResult struct {
	Profiles                []PatientMedicationProfile `json:"profiles"`
	TotalPatients           int                        `json:"total_patients"`
	TotalPatientMedications int                        `json:"total_patient_medications"`
	PatientsDueSoon         int                        `json:"patients_due_soon"`
	AnalysisDate            time.Time                  `json:"analysis_date"`
}

// MedicationProfileSummary is the per-medication rollup of profiles.
type MedicationProfileSummary struct {
	Medication         string  `json:"medication"`
	TotalPatients      int     `json:"total_patients"`
	PatientsDue7d      int     `json:"patients_due_7d"`
	ExpectedQuantity7d int     `json:"expected_quantity_7d"`
	HighRiskPatients   int     `json:"high_risk_patients"`
	AvgRefillInterval  float64 `json:"avg_refill_interval"`
}

// ForecastMethod tags how a forecast record was produced.
type ForecastMethod string

const (
	MethodPatientBased  ForecastMethod = "patient_based"
	MethodSimpleAverage ForecastMethod = "simple_average"
)

// DemandAlert flags notable conditions on a forecast record.
type DemandAlert string

const (
	AlertSpike         DemandAlert = "spike"
	AlertDrop          DemandAlert = "drop"
	AlertSeasonalPeak  DemandAlert = "seasonal_peak"
	AlertShortageRisk  DemandAlert = "shortage_risk"
	AlertOverstockRisk DemandAlert = "overstock_risk"
)

// MedicationForecast is the predicted demand for one medication on one day.
type MedicationForecast struct {
	Medication         string         `json:"medication"`
	Category           string         `json:"category,omitempty"`
	ForecastDate       time.Time      `json:"forecast_date"`
	PredictedDemand    float64        `json:"predicted_demand"`
	LowerBound         float64        `json:"lower_bound"`
	UpperBound         float64        `json:"upper_bound"`
	BaseDemand         float64        `json:"base_demand"`
	PatientBasedDemand float64        `json:"patient_based_demand"`
	ExternalMultiplier float64        `json:"external_multiplier"`
	Confidence         float64        `json:"confidence"`
	Method             ForecastMethod `json:"method"`
	Alerts             []DemandAlert  `json:"alerts,omitempty"`
}

// HasAlert reports whether the record carries the given alert.
func (f MedicationForecast) HasAlert(a DemandAlert) bool {
	for _, alert := range f.Alerts {
		if alert == a {
			return true
		}
	}
	return false
}

// CategoryForecast aggregates same-day forecasts across one category.
type CategoryForecast struct {
	Category             string    `json:"category"`
	ForecastDate         time.Time `json:"forecast_date"`
	TotalPredictedDemand float64   `json:"total_predicted_demand"`
	MedicationCount      int       `json:"medication_count"`
	AverageConfidence    float64   `json:"average_confidence"`
	Trend                string    `json:"trend"` // increasing, stable, decreasing
	FluImpact            bool      `json:"flu_impact"`
	WeatherImpact        bool      `json:"weather_impact"`
	EventImpact          bool      `json:"event_impact"`
}

// ForecastSummary is the run-level rollup of a forecasting pass.
type ForecastSummary struct {
	ForecastDate         time.Time `json:"forecast_date" db:"forecast_date"`
	ForecastHorizonDays  int       `json:"forecast_horizon_days" db:"forecast_horizon_days"`
	TotalMedications     int       `json:"total_medications" db:"total_medications"`
	TotalPredictedDemand float64   `json:"total_predicted_demand" db:"total_predicted_demand"`
	HighPriorityAlerts   int       `json:"high_priority_alerts" db:"high_priority_alerts"`
	SpikeAlerts          int       `json:"spike_alerts" db:"spike_alerts"`
	ShortageRisks        int       `json:"shortage_risks" db:"shortage_risks"`
	AverageConfidence    float64   `json:"average_confidence" db:"average_confidence"`
	DataCompleteness     string    `json:"data_completeness" db:"data_completeness"` // complete, partial, degraded
}

// ForecastingResult is the complete output of one forecasting pass, sorted
// by (medication, forecast date).
type ForecastingResult struct {
	AnalysisDate             time.Time            `json:"analysis_date"`
	ForecastStartDate        time.Time            `json:"forecast_start_date"`
	ForecastEndDate          time.Time            `json:"forecast_end_date"`
	MedicationForecasts      []MedicationForecast `json:"medication_forecasts"`
	CategoryForecasts        []CategoryForecast   `json:"category_forecasts"`
	Summary                  ForecastSummary      `json:"summary"`
	PatientProfilesCount     int                  `json:"patient_profiles_count"`
	ExternalSignalsAvailable bool                 `json:"external_signals_available"`
	Method                   ForecastMethod       `json:"method"`
	Notes                    []string             `json:"notes,omitempty"`
}

// ForecastFor returns the record for a medication on a specific date.
func (r *ForecastingResult) ForecastFor(medication string, date time.Time) *MedicationForecast {
	for i := range r.MedicationForecasts {
		f := &r.MedicationForecasts[i]
		if f.Medication == medication && sameDay(f.ForecastDate, date) {
			return f
		}
	}
	return nil
}

// HighRiskMedications returns records carrying shortage or spike alerts.
func (r *ForecastingResult) HighRiskMedications() []MedicationForecast {
	var out []MedicationForecast
	for _, f := range r.MedicationForecasts {
		if f.HasAlert(AlertShortageRisk) || f.HasAlert(AlertSpike) {
			out = append(out, f)
		}
	}
	return out
}

// CategorySummary returns the category rollup for a given category, if any.
func (r *ForecastingResult) CategorySummary(category string) *CategoryForecast {
	for i := range r.CategoryForecasts {
		if r.CategoryForecasts[i].Category == category {
			return &r.CategoryForecasts[i]
		}
	}
	return nil
}

// TotalDemandFor sums predicted demand for one medication across the window.
func (r *ForecastingResult) TotalDemandFor(medication string) float64 {
	var total float64
	for _, f := range r.MedicationForecasts {
		if f.Medication == medication {
			total += f.PredictedDemand
		}
	}
	return total
}

// InventoryLot is one lot-level stock record.
type InventoryLot struct {
	Medication     string     `json:"medication" db:"medication"`
	LotNumber      string     `json:"lot_number" db:"lot_number"`
	Quantity       int        `json:"quantity" db:"quantity"`
	UnitCost       float64    `json:"unit_cost" db:"unit_cost"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty" db:"expiration_date"`
}

// MedicationInfo is a medication reference record (catalog data).
type MedicationInfo struct {
	Medication      string `json:"medication" db:"medication"`
	Category        string `json:"category" db:"category"`
	CaseSize        int    `json:"case_size" db:"case_size"`
	LeadTimeDays    int    `json:"lead_time_days" db:"lead_time_days"`
	ShelfLifeMonths int    `json:"shelf_life_months,omitempty" db:"shelf_life_months"`
}

// MedicationInventory is the aggregated stock position for one medication,
// built fresh from lot records on each optimization pass.
type MedicationInventory struct {
	Medication        string     `json:"medication"`
	Category          string     `json:"category,omitempty"`
	CurrentQuantity   int        `json:"current_quantity"`
	LotCount          int        `json:"lot_count"`
	EarliestExpiry    *time.Time `json:"earliest_expiry,omitempty"`
	UnitsExpiringSoon int        `json:"units_expiring_soon"`
	UnitCost          float64    `json:"unit_cost"`
	CaseSize          int        `json:"case_size"`
	LeadTimeDays      int        `json:"lead_time_days"`
}

// OrderPriority ranks how urgently an order should be placed.
type OrderPriority string

const (
	PriorityCritical OrderPriority = "critical"
	PriorityHigh     OrderPriority = "high"
	PriorityMedium   OrderPriority = "medium"
	PriorityLow      OrderPriority = "low"
)

// OrderReason explains why an order was recommended.
type OrderReason string

const (
	ReasonStockoutRisk OrderReason = "stockout_risk"
	ReasonReorderPoint OrderReason = "reorder_point"
	ReasonDemandSpike  OrderReason = "demand_spike"
	ReasonExpiringSoon OrderReason = "expiring_soon"
	ReasonRoutine      OrderReason = "routine"
	ReasonShortage     OrderReason = "shortage"
)

// OrderRecommendation is a purchase recommendation for one medication.
// One is emitted only when a reorder trigger fired; absence means no order
// is needed.
type OrderRecommendation struct {
	Medication           string        `json:"medication" db:"medication"`
	Category             string        `json:"category,omitempty" db:"category"`
	CurrentQuantity      int           `json:"current_quantity" db:"current_quantity"`
	ForecastedDemand30d  float64       `json:"forecasted_demand_30d" db:"forecasted_demand_30d"`
	RecommendedQuantity  int           `json:"recommended_order_quantity" db:"recommended_quantity"`
	RecommendedCases     int           `json:"recommended_cases" db:"recommended_cases"`
	ReorderPoint         int           `json:"reorder_point" db:"reorder_point"`
	SafetyStock          int           `json:"safety_stock" db:"safety_stock"`
	OrderCost            float64       `json:"order_cost" db:"order_cost"`
	DaysOfSupplyAfter    float64       `json:"days_of_supply" db:"days_of_supply"`
	Priority             OrderPriority `json:"priority" db:"priority"`
	Reasons              []OrderReason `json:"reasons"`
	UrgencyScore         float64       `json:"urgency_score" db:"urgency_score"`
	StockoutRisk         float64       `json:"stockout_risk" db:"stockout_risk"`
	OverstockRisk        float64       `json:"overstock_risk" db:"overstock_risk"`
}

// HasReason reports whether the recommendation carries the given reason.
func (o OrderRecommendation) HasReason(r OrderReason) bool {
	for _, reason := range o.Reasons {
		if reason == r {
			return true
		}
	}
	return false
}

// OptimizationSummary is the run-level rollup of an optimization pass.
type OptimizationSummary struct {
	OptimizationDate      time.Time `json:"optimization_date"`
	TotalRecommendations  int       `json:"total_recommendations"`
	CriticalOrders        int       `json:"critical_orders"`
	HighPriorityOrders    int       `json:"high_priority_orders"`
	TotalOrderCost        float64   `json:"total_order_cost"`
	EstimatedCarryingCost float64   `json:"estimated_carrying_cost"` // monthly
	MedicationsAtRisk     int       `json:"medications_at_risk"`
	AverageStockoutRisk   float64   `json:"average_stockout_risk"`
	TotalCurrentValue     float64   `json:"total_current_value"`
	TotalForecastedDemand float64   `json:"total_forecasted_demand"`
}

// OptimizationResult is the complete output of one optimization pass,
// sorted by priority rank, urgency, then medication.
type OptimizationResult struct {
	AnalysisDate             time.Time             `json:"analysis_date"`
	OptimizationHorizonDays  int                   `json:"optimization_horizon_days"`
	OrderRecommendations     []OrderRecommendation `json:"order_recommendations"`
	Summary                  OptimizationSummary   `json:"summary"`
	ForecastingAvailable     bool                  `json:"forecasting_available"`
	InventoryAvailable       bool                  `json:"inventory_available"`
	Notes                    []string              `json:"notes,omitempty"`
}

// CriticalOrders returns critical and high priority recommendations.
func (r *OptimizationResult) CriticalOrders() []OrderRecommendation {
	var out []OrderRecommendation
	for _, o := range r.OrderRecommendations {
		if o.Priority == PriorityCritical || o.Priority == PriorityHigh {
			out = append(out, o)
		}
	}
	return out
}

// OrderFor returns the recommendation for one medication, if any.
func (r *OptimizationResult) OrderFor(medication string) *OrderRecommendation {
	for i := range r.OrderRecommendations {
		if r.OrderRecommendations[i].Medication == medication {
			return &r.OrderRecommendations[i]
		}
	}
	return nil
}

// OrdersByPriority returns all recommendations of one priority.
func (r *OptimizationResult) OrdersByPriority(p OrderPriority) []OrderRecommendation {
	var out []OrderRecommendation
	for _, o := range r.OrderRecommendations {
		if o.Priority == p {
			out = append(out, o)
		}
	}
	return out
}

// TotalOrderCost sums the cost of all recommended orders.
func (r *OptimizationResult) TotalOrderCost() float64 {
	var total float64
	for _, o := range r.OrderRecommendations {
		total += o.OrderCost
	}
	return total
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
