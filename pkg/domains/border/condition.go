package border

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const (
	// FortBlissViolationBaseline is the violation count documented at Fort Bliss.
	FortBlissViolationBaseline = 60
	// BaselineDeathRate is deaths per 10,000 detainee days.
	BaselineDeathRate = 0.5
)

// Inspection is a facility inspection report. Each flag marks a standard
// as met.
type Inspection struct {
	Date                       string
	Inspector                  string
	Notes                      string
	MedicalCareAdequate        bool
	FoodQualityAdequate        bool
	SanitationAdequate         bool
	RecreationAccess           bool
	CommunicationAccess        bool
	LegalAccess                bool
	SleepingConditionsAdequate bool
	ClimateControlAdequate     bool
}

func (in Inspection) standards() map[string]bool {
	return map[string]bool{
		"medical_care":        in.MedicalCareAdequate,
		"food_quality":        in.FoodQualityAdequate,
		"sanitation":          in.SanitationAdequate,
		"recreation":          in.RecreationAccess,
		"communication":       in.CommunicationAccess,
		"legal_access":        in.LegalAccess,
		"sleeping_conditions": in.SleepingConditionsAdequate,
		"climate_control":     in.ClimateControlAdequate,
	}
}

// AssessConditions grades a facility by the share of standards met.
func (m *Module) AssessConditions(ctx context.Context, facilityID string, in Inspection) (*receipts.Receipt, error) {
	standards := in.standards()
	met := 0
	for _, ok := range standards {
		if ok {
			met++
		}
	}
	rate := float64(met) / float64(len(standards))

	return m.emitter.Emit(ctx, "condition_assessment", map[string]any{
		"facility_id":        facilityID,
		"inspection_date":    orDefault(in.Date, "unknown"),
		"standards_assessed": standards,
		"standards_met":      met,
		"standards_total":    len(standards),
		"compliance_rate":    rate,
		"classification":     classifyCompliance(rate),
		"inspector":          orDefault(in.Inspector, "unknown"),
		"notes":              in.Notes,
	})
}

func classifyCompliance(rate float64) string {
	switch {
	case rate >= 0.9:
		return "adequate"
	case rate >= 0.7:
		return "deficient"
	case rate >= 0.5:
		return "critical"
	default:
		return "dangerous"
	}
}

// Violation is a recorded facility violation.
type Violation struct {
	Category    string `json:"category"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description,omitempty"`
}

var violationCategories = []string{"medical", "safety", "sanitation", "overcrowding", "staff_conduct", "legal_access", "other"}

// TrackViolations tallies violations by category. Any critical violation
// emits an escalation anomaly first.
func (m *Module) TrackViolations(ctx context.Context, facilityID string, violations []Violation) (*receipts.Receipt, error) {
	byCategory := make(map[string]int, len(violationCategories))
	for _, c := range violationCategories {
		byCategory[c] = 0
	}
	critical := 0
	for _, v := range violations {
		cat := strings.ToLower(orDefault(v.Category, "other"))
		if _, ok := byCategory[cat]; !ok {
			cat = "other"
		}
		byCategory[cat]++
		if v.Severity == "critical" {
			critical++
		}
	}

	if critical > 0 {
		if _, err := m.emitter.EmitAnomaly(ctx, receipts.Anomaly{
			Metric:         "critical_violations",
			Delta:          float64(critical),
			Classification: receipts.ClassViolation,
			Action:         receipts.ActionEscalate,
		}); err != nil {
			return nil, fmt.Errorf("border: violation anomaly: %w", err)
		}
	}

	if violations == nil {
		violations = []Violation{}
	}
	return m.emitter.Emit(ctx, "violation_tracking", map[string]any{
		"facility_id":            facilityID,
		"total_violations":       len(violations),
		"critical_violations":    critical,
		"violations_by_category": byCategory,
		"violations":             violations,
		"fort_bliss_baseline":    FortBlissViolationBaseline,
		"exceeds_baseline":       len(violations) > FortBlissViolationBaseline,
	})
}

// ComputeDeathRate emits death_rate per 10,000 detainee days. A rate above
// twice the baseline emits a halting degradation anomaly first.
func (m *Module) ComputeDeathRate(ctx context.Context, facilityID, period string, deaths, detaineeDays int) (*receipts.Receipt, error) {
	rate := 0.0
	if detaineeDays > 0 {
		rate = float64(deaths) / float64(detaineeDays) * 10000
	}
	if rate > BaselineDeathRate*2 {
		if _, err := m.emitter.EmitAnomaly(ctx, receipts.Anomaly{
			Metric:         "death_rate",
			Baseline:       BaselineDeathRate,
			Delta:          rate - BaselineDeathRate,
			Classification: receipts.ClassDegradation,
			Action:         receipts.ActionHalt,
		}); err != nil {
			return nil, fmt.Errorf("border: death rate anomaly: %w", err)
		}
	}

	return m.emitter.Emit(ctx, "death_rate", map[string]any{
		"facility_id":              facilityID,
		"period":                   period,
		"deaths":                   deaths,
		"detainee_days":            detaineeDays,
		"rate_per_10k_days":        rate,
		"baseline_rate":            BaselineDeathRate,
		"exceeds_baseline":         rate > BaselineDeathRate,
		"rate_multiplier":          rate / BaselineDeathRate,
		"fy2025_deaths_documented": 32,
		"deadliest_since":          2004,
	})
}
