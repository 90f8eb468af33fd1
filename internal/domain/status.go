package domain

import "strings"

var priorityRanks = map[OrderPriority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

var priorityNames = map[string]OrderPriority{
	"critical": PriorityCritical,
	"high":     PriorityHigh,
	"medium":   PriorityMedium,
	"low":      PriorityLow,
}

// PriorityRank returns the sort rank for a priority, critical first.
// Unknown priorities sort last.
func PriorityRank(p OrderPriority) int {
	if rank, ok := priorityRanks[p]; ok {
		return rank
	}

	return len(priorityRanks)
}

// ParseOrderPriority returns the priority for a given label (case-insensitive).
func ParseOrderPriority(label string) (OrderPriority, bool) {
	p, ok := priorityNames[strings.ToLower(strings.TrimSpace(label))]

	return p, ok
}

var validBehaviorClasses = map[BehaviorClass]bool{
	BehaviorHighlyRegular:    true,
	BehaviorRegular:          true,
	BehaviorIrregular:        true,
	BehaviorNewPatient:       true,
	BehaviorInsufficientData: true,
}

// ValidBehaviorClass reports whether the class is one of the closed set.
func ValidBehaviorClass(c BehaviorClass) bool {
	return validBehaviorClasses[c]
}

var validEpidemicTrends = map[EpidemicTrend]bool{
	TrendRapidIncrease: true,
	TrendIncrease:      true,
	TrendStable:        true,
	TrendDecrease:      true,
	TrendRapidDecrease: true,
}

// ValidEpidemicTrend reports whether the trend is a known value.
func ValidEpidemicTrend(t EpidemicTrend) bool {
	return validEpidemicTrends[t]
}

var validRunStages = map[RunStage]bool{
	StageIdle:        true,
	StageProfiling:   true,
	StageForecasting: true,
	StageOptimizing:  true,
	StageComplete:    true,
	StageFailed:      true,
}

// ValidRunStage reports whether the stage is part of the run state machine.
func ValidRunStage(s RunStage) bool {
	return validRunStages[s]
}
