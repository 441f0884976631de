package tariff

import (
	"context"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// IEEPA statuses accepted by ComputeLiability.
const (
	StatusPending       = "pending"
	StatusAffirmed      = "affirmed"
	StatusStruckPartial = "struck_partial"
	StatusStruckFull    = "struck_full"
)

// Collection is one tariff collection record.
type Collection struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period,omitempty"`
}

// LiabilityScenario is the refund exposure under one ruling.
type LiabilityScenario struct {
	Description        string  `json:"description"`
	RefundLiability    float64 `json:"refund_liability"`
	ExposurePercentage float64 `json:"exposure_percentage"`
}

// ComputeLiability models refund liability under each IEEPA ruling.
// Unknown and pending statuses fall back to the affirmed scenario.
func (m *Module) ComputeLiability(ctx context.Context, collected []Collection, ieepaStatus string) (*receipts.Receipt, error) {
	if ieepaStatus == "" {
		ieepaStatus = StatusPending
	}
	total := 0.0
	for _, c := range collected {
		total += c.Amount
	}

	scenarios := map[string]LiabilityScenario{
		StatusAffirmed:      {"Supreme Court affirms IEEPA authority", 0, 0},
		StatusStruckPartial: {"IEEPA struck for specific tariffs only", total * 0.3, 30},
		StatusStruckFull:    {"IEEPA authority fully invalidated", total, 100},
	}
	current, ok := scenarios[ieepaStatus]
	if !ok {
		current = scenarios[StatusAffirmed]
	}

	return m.emitter.Emit(ctx, "refund_liability", map[string]any{
		"total_collected":    total,
		"ieepa_status":       ieepaStatus,
		"baseline_liability": m.exposure.TariffRefundLiability,
		"scenarios":          scenarios,
		"current_scenario":   current,
		"scotus_oral_args":   "2025-11-05",
		"decision_expected":  "2026-Q1",
	})
}

// Claimant is a party claiming a tariff refund.
type Claimant struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	PurchasedRights bool    `json:"purchased_rights"`
	PurchasePrice   float64 `json:"purchase_price"`
	DiscountRate    float64 `json:"discount_rate"`
}

// IsLitigationFinance reports whether the claimant bought refund rights or
// is a litigation finance vehicle.
func (c Claimant) IsLitigationFinance() bool {
	t := strings.ToLower(c.Type)
	return strings.Contains(t, "litigation") || strings.Contains(t, "finance") || c.PurchasedRights
}

// TrackClaimant emits refund_claimant.
func (m *Module) TrackClaimant(ctx context.Context, c Claimant, amount float64) (*receipts.Receipt, error) {
	return m.emitter.Emit(ctx, "refund_claimant", map[string]any{
		"claimant_name":         orDefault(c.Name, "unknown"),
		"claimant_type":         orDefault(c.Type, "unknown"),
		"claim_amount":          amount,
		"is_litigation_finance": c.IsLitigationFinance(),
		"purchased_rights":      c.PurchasedRights,
		"purchase_price":        c.PurchasePrice,
		"discount_rate":         c.DiscountRate,
	})
}

// Scenario is a possible Supreme Court outcome.
type Scenario struct {
	Name             string  `json:"name"`
	Probability      float64 `json:"probability"`
	RefundPercentage float64 `json:"refund_percentage"`
}

// ScenarioResult is a Scenario priced against the baseline liability.
type ScenarioResult struct {
	Scenario          string  `json:"scenario"`
	Probability       float64 `json:"probability"`
	RefundPercentage  float64 `json:"refund_percentage"`
	RawLiability      float64 `json:"raw_liability"`
	WeightedLiability float64 `json:"weighted_liability"`
}

// ModelSCOTUSOutcomes prices each scenario and the probability-weighted
// expected liability.
func (m *Module) ModelSCOTUSOutcomes(ctx context.Context, scenarios []Scenario) (*receipts.Receipt, error) {
	baseline := m.exposure.TariffRefundLiability
	results := make([]ScenarioResult, 0, len(scenarios))
	expected := 0.0
	for _, s := range scenarios {
		raw := baseline * (s.RefundPercentage / 100)
		res := ScenarioResult{
			Scenario:          orDefault(s.Name, "unknown"),
			Probability:       s.Probability,
			RefundPercentage:  s.RefundPercentage,
			RawLiability:      raw,
			WeightedLiability: raw * s.Probability,
		}
		expected += res.WeightedLiability
		results = append(results, res)
	}
	pct := 0.0
	if baseline != 0 {
		pct = expected / baseline * 100
	}

	return m.emitter.Emit(ctx, "scotus_scenario", map[string]any{
		"scenarios":                results,
		"expected_liability":       expected,
		"baseline_liability":       baseline,
		"expected_pct_of_baseline": pct,
	})
}
