package optimization

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

const (
	defaultCaseSize     = 1
	defaultLeadTimeDays = 7
	expiryWindowDays    = 30

	// days-of-supply when daily demand is zero
	supplySentinel = 999.0
)

// Optimizer turns forecasted demand and lot-level stock into purchase
// order recommendations.
type Optimizer struct {
	cfg config.OptimizationConfig
}

// NewOptimizer creates an optimizer. Zero config fields fall back to
// defaults.
func NewOptimizer(cfg config.OptimizationConfig) *Optimizer {
	if cfg.SafetyStockDays <= 0 {
		cfg.SafetyStockDays = 7.0
	}
	if cfg.CarryingCostRate <= 0 {
		cfg.CarryingCostRate = 0.20
	}
	if cfg.OrderFixedCost <= 0 {
		cfg.OrderFixedCost = 50.0
	}
	if cfg.CriticalThresholdDays <= 0 {
		cfg.CriticalThresholdDays = 3.0
	}
	if cfg.HighThresholdDays <= 0 {
		cfg.HighThresholdDays = 7.0
	}
	if cfg.MinOrderQuantity <= 0 {
		cfg.MinOrderQuantity = 1
	}
	return &Optimizer{cfg: cfg}
}

// Optimize produces order recommendations for every medication in the
// forecast that has stock on hand and a fired reorder trigger. Medications
// without a trigger are absent from the output.
func (o *Optimizer) Optimize(forecast *domain.ForecastingResult, lots []domain.InventoryLot, meds []domain.MedicationInfo) (*domain.OptimizationResult, error) {
	if forecast == nil {
		return nil, fmt.Errorf("optimization: %w", domain.ErrNoForecast)
	}

	horizonDays := forecast.Summary.ForecastHorizonDays
	if horizonDays <= 0 {
		horizonDays = 30
	}

	// 1. Aggregate lots into per-medication stock positions
	inventory := BuildInventory(lots, meds, forecast.AnalysisDate)

	// 2. Total forecasted demand and alert flags per medication
	demand := make(map[string]float64)
	spiked := make(map[string]bool)
	short := make(map[string]bool)
	for _, rec := range forecast.MedicationForecasts {
		demand[rec.Medication] += rec.PredictedDemand
		if rec.HasAlert(domain.AlertSpike) {
			spiked[rec.Medication] = true
		}
		if rec.HasAlert(domain.AlertShortageRisk) {
			short[rec.Medication] = true
		}
	}

	medications := make([]string, 0, len(demand))
	for medication := range demand {
		medications = append(medications, medication)
	}
	sort.Strings(medications)

	// 3. Evaluate each medication against its reorder triggers
	var recommendations []domain.OrderRecommendation
	var notes []string
	for _, medication := range medications {
		inv, ok := inventory[medication]
		if !ok {
			notes = append(notes, fmt.Sprintf("no inventory data for %s", medication))
			continue
		}
		rec := o.optimizeMedication(inv, demand[medication], horizonDays, spiked[medication], short[medication])
		if rec != nil {
			recommendations = append(recommendations, *rec)
		}
	}

	// 4. Deterministic output order: priority, urgency, medication
	sort.Slice(recommendations, func(i, j int) bool {
		ri, rj := domain.PriorityRank(recommendations[i].Priority), domain.PriorityRank(recommendations[j].Priority)
		if ri != rj {
			return ri < rj
		}
		if recommendations[i].UrgencyScore != recommendations[j].UrgencyScore {
			return recommendations[i].UrgencyScore > recommendations[j].UrgencyScore
		}
		return recommendations[i].Medication < recommendations[j].Medication
	})

	summary := o.summarize(recommendations, inventory, demand, forecast.AnalysisDate)

	return &domain.OptimizationResult{
		AnalysisDate:            forecast.AnalysisDate,
		OptimizationHorizonDays: horizonDays,
		OrderRecommendations:    recommendations,
		Summary:                 summary,
		ForecastingAvailable:    true,
		InventoryAvailable:      len(lots) > 0,
		Notes:                   notes,
	}, nil
}

// BuildInventory aggregates lot rows into one stock position per
// medication. Reference data supplies category, case size and lead time;
// absent reference rows fall back to case size 1 and a 7 day lead time.
func BuildInventory(lots []domain.InventoryLot, meds []domain.MedicationInfo, asOf time.Time) map[string]domain.MedicationInventory {
	reference := make(map[string]domain.MedicationInfo, len(meds))
	for _, m := range meds {
		reference[m.Medication] = m
	}

	type position struct {
		quantity      int
		lotNumbers    map[string]bool
		expiring      int
		earliestExp   *time.Time
		costSum       float64
		costCount     int
	}

	expiryCutoff := asOf.AddDate(0, 0, expiryWindowDays)
	positions := make(map[string]*position)
	for _, lot := range lots {
		p := positions[lot.Medication]
		if p == nil {
			p = &position{lotNumbers: make(map[string]bool)}
			positions[lot.Medication] = p
		}
		p.quantity += lot.Quantity
		p.lotNumbers[lot.LotNumber] = true
		p.costSum += lot.UnitCost
		p.costCount++

		if lot.ExpirationDate != nil {
			if p.earliestExp == nil || lot.ExpirationDate.Before(*p.earliestExp) {
				exp := *lot.ExpirationDate
				p.earliestExp = &exp
			}
			if !lot.ExpirationDate.After(expiryCutoff) {
				p.expiring += lot.Quantity
			}
		}
	}

	out := make(map[string]domain.MedicationInventory, len(positions))
	for medication, p := range positions {
		inv := domain.MedicationInventory{
			Medication:        medication,
			CurrentQuantity:   p.quantity,
			LotCount:          len(p.lotNumbers),
			EarliestExpiry:    p.earliestExp,
			UnitsExpiringSoon: p.expiring,
			CaseSize:          defaultCaseSize,
			LeadTimeDays:      defaultLeadTimeDays,
		}
		if p.costCount > 0 {
			inv.UnitCost = p.costSum / float64(p.costCount)
		}
		if ref, ok := reference[medication]; ok {
			inv.Category = ref.Category
			if ref.CaseSize > 0 {
				inv.CaseSize = ref.CaseSize
			}
			if ref.LeadTimeDays > 0 {
				inv.LeadTimeDays = ref.LeadTimeDays
			}
		}
		out[medication] = inv
	}

	return out
}

// optimizeMedication evaluates one medication and returns a recommendation
// when a reorder trigger fires, nil otherwise.
func (o *Optimizer) optimizeMedication(inv domain.MedicationInventory, forecastedDemand float64, horizonDays int, spiked, short bool) *domain.OrderRecommendation {
	// 1. Daily demand rate over the forecast horizon
	dailyDemand := forecastedDemand / float64(horizonDays)

	// 2. Safety stock and reorder point
	safetyStock := int(dailyDemand * o.cfg.SafetyStockDays)
	leadTimeDemand := dailyDemand * float64(inv.LeadTimeDays)
	reorderPoint := int(leadTimeDemand + float64(safetyStock))

	// 3. Days of supply at the current rate
	daysOfSupply := supplySentinel
	if dailyDemand > 0 {
		daysOfSupply = float64(inv.CurrentQuantity) / dailyDemand
	}

	// 4. Reorder trigger
	needsOrder := inv.CurrentQuantity <= reorderPoint
	if !needsOrder && daysOfSupply >= o.cfg.HighThresholdDays {
		return nil
	}

	// 5. Order quantity via EOQ or horizon coverage
	var orderQuantity int
	if o.cfg.UseEOQ {
		annualDemand := dailyDemand * 365
		holdingCost := inv.UnitCost * o.cfg.CarryingCostRate
		// Documented fallback: zero holding cost orders the raw forecast
		// demand with no safety margin
		eoq := forecastedDemand
		if holdingCost > 0 {
			eoq = math.Sqrt((2 * annualDemand * o.cfg.OrderFixedCost) / holdingCost)
		}
		orderQuantity = int(eoq)
	} else {
		orderQuantity = int(forecastedDemand + float64(safetyStock) - float64(inv.CurrentQuantity))
	}
	orderQuantity = max(orderQuantity, o.cfg.MinOrderQuantity)

	// 6. Round up to whole cases
	caseSize := max(inv.CaseSize, 1)
	recommendedCases := int(math.Ceil(float64(orderQuantity) / float64(caseSize)))
	if o.cfg.RoundToCase && caseSize > 1 {
		orderQuantity = recommendedCases * caseSize
	}

	// 7. Cost and post-order coverage
	orderCost := float64(orderQuantity) * inv.UnitCost
	daysAfterOrder := supplySentinel
	if dailyDemand > 0 {
		daysAfterOrder = float64(inv.CurrentQuantity+orderQuantity) / dailyDemand
	}

	// 8. Priority tier and reason codes
	var priority domain.OrderPriority
	var reasons []domain.OrderReason
	switch {
	case daysOfSupply < o.cfg.CriticalThresholdDays:
		priority = domain.PriorityCritical
		reasons = append(reasons, domain.ReasonStockoutRisk)
	case daysOfSupply < o.cfg.HighThresholdDays:
		priority = domain.PriorityHigh
		reasons = append(reasons, domain.ReasonReorderPoint)
	case needsOrder:
		priority = domain.PriorityMedium
		reasons = append(reasons, domain.ReasonRoutine)
	default:
		priority = domain.PriorityLow
		reasons = append(reasons, domain.ReasonRoutine)
	}
	if inv.UnitsExpiringSoon > 0 {
		reasons = append(reasons, domain.ReasonExpiringSoon)
	}
	if spiked {
		reasons = append(reasons, domain.ReasonDemandSpike)
	}
	if short {
		reasons = append(reasons, domain.ReasonShortage)
	}

	// 9. Risk scores
	urgency := clamp01(1 - daysOfSupply/o.cfg.HighThresholdDays)
	// Reorder point can truncate to zero at tiny demand rates
	stockoutRisk := 1.0
	if reorderPoint > 0 {
		stockoutRisk = clamp01(1 - float64(inv.CurrentQuantity)/float64(reorderPoint))
	} else if inv.CurrentQuantity > 0 {
		stockoutRisk = 0
	}
	targetStock := forecastedDemand + float64(safetyStock)
	overstockRisk := 0.0
	if targetStock > 0 {
		overstockRisk = clamp01((float64(inv.CurrentQuantity+orderQuantity) - targetStock) / targetStock)
	}

	return &domain.OrderRecommendation{
		Medication:          inv.Medication,
		Category:            inv.Category,
		CurrentQuantity:     inv.CurrentQuantity,
		ForecastedDemand30d: forecastedDemand,
		RecommendedQuantity: orderQuantity,
		RecommendedCases:    recommendedCases,
		ReorderPoint:        reorderPoint,
		SafetyStock:         safetyStock,
		OrderCost:           orderCost,
		DaysOfSupplyAfter:   daysAfterOrder,
		Priority:            priority,
		Reasons:             reasons,
		UrgencyScore:        urgency,
		StockoutRisk:        stockoutRisk,
		OverstockRisk:       overstockRisk,
	}
}

func (o *Optimizer) summarize(recommendations []domain.OrderRecommendation, inventory map[string]domain.MedicationInventory, demand map[string]float64, asOf time.Time) domain.OptimizationSummary {
	var critical, high, atRisk int
	var totalOrderCost, stockoutSum float64
	for _, rec := range recommendations {
		switch rec.Priority {
		case domain.PriorityCritical:
			critical++
		case domain.PriorityHigh:
			high++
		}
		totalOrderCost += rec.OrderCost
		stockoutSum += rec.StockoutRisk
		if rec.StockoutRisk > 0.5 {
			atRisk++
		}
	}

	var totalValue float64
	for _, inv := range inventory {
		totalValue += float64(inv.CurrentQuantity) * inv.UnitCost
	}

	var totalDemand float64
	for _, d := range demand {
		totalDemand += d
	}

	avgStockout := 0.0
	if len(recommendations) > 0 {
		avgStockout = stockoutSum / float64(len(recommendations))
	}

	return domain.OptimizationSummary{
		OptimizationDate:      asOf,
		TotalRecommendations:  len(recommendations),
		CriticalOrders:        critical,
		HighPriorityOrders:    high,
		TotalOrderCost:        totalOrderCost,
		EstimatedCarryingCost: totalValue * o.cfg.CarryingCostRate / 12,
		MedicationsAtRisk:     atRisk,
		AverageStockoutRisk:   avgStockout,
		TotalCurrentValue:     totalValue,
		TotalForecastedDemand: totalDemand,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
