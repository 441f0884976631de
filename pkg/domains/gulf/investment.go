// Package gulf scores sovereign wealth fund investments, management fees,
// returns and FARA registration.
package gulf

import (
	"context"
	"fmt"
	"math"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const (
	// MarketManagementFee is the standard management fee percentage.
	MarketManagementFee = 2.0
	// LowDeploymentRate is the deployment rate below which capital is idle.
	LowDeploymentRate = 0.5
	// AffinityDeploymentRate is the reported Affinity deployment rate.
	AffinityDeploymentRate = 0.33
)

// Module holds the emitter and constants shared by the gulf functions.
type Module struct {
	emitter    *receipts.Emitter
	exposure   config.Exposure
	thresholds config.Thresholds
}

// New creates the gulf module.
func New(e *receipts.Emitter, cfg *config.Config) *Module {
	return &Module{emitter: e, exposure: cfg.Exposure, thresholds: cfg.Thresholds}
}

// Fund is a sovereign wealth fund.
type Fund struct {
	ID                      string `json:"id,omitempty"`
	Name                    string `json:"name"`
	Country                 string `json:"country,omitempty"`
	InvestmentDate          string `json:"investment_date,omitempty"`
	ScreeningRecommendation string `json:"screening_recommendation,omitempty"`
	OverrideBy              string `json:"override_by,omitempty"`
}

// Recipient receives a fund investment.
type Recipient struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// RegisterSWFInvestment emits swf_investment. Missing IDs are derived from
// a hash of the record.
func (m *Module) RegisterSWFInvestment(ctx context.Context, fund Fund, recipient Recipient, amount float64) (*receipts.Receipt, error) {
	fundID, err := m.idOf(fund.ID, fund)
	if err != nil {
		return nil, err
	}
	recipientID, err := m.idOf(recipient.ID, recipient)
	if err != nil {
		return nil, err
	}
	var override any
	if fund.OverrideBy != "" {
		override = fund.OverrideBy
	}
	return m.emitter.Emit(ctx, "swf_investment", map[string]any{
		"fund_id":                        fundID,
		"fund_name":                      orDefault(fund.Name, "unknown"),
		"fund_country":                   orDefault(fund.Country, "unknown"),
		"recipient_id":                   recipientID,
		"recipient_name":                 orDefault(recipient.Name, "unknown"),
		"amount":                         amount,
		"investment_date":                orDefault(fund.InvestmentDate, "unknown"),
		"screening_panel_recommendation": orDefault(fund.ScreeningRecommendation, "unknown"),
		"override_by":                    override,
		"pif_baseline":                   m.exposure.GulfPIFInvestment,
	})
}

func (m *Module) idOf(id string, v any) (string, error) {
	if id != "" {
		return id, nil
	}
	h, err := m.emitter.Hasher().Hash(v)
	if err != nil {
		return "", fmt.Errorf("gulf: hash record: %w", err)
	}
	return h[:12], nil
}

// TrackDeployment emits capital_deployment.
func (m *Module) TrackDeployment(ctx context.Context, investmentID string, deployed, total float64) (*receipts.Receipt, error) {
	rate := 0.0
	if total > 0 {
		rate = deployed / total
	}
	return m.emitter.Emit(ctx, "capital_deployment", map[string]any{
		"investment_id":          investmentID,
		"deployed_amount":        deployed,
		"total_commitment":       total,
		"deployment_rate":        rate,
		"deployment_percentage":  rate * 100,
		"low_deployment_flag":    rate < LowDeploymentRate,
		"affinity_baseline_rate": AffinityDeploymentRate,
	})
}

// Terms of an investment.
type Terms struct {
	ManagementFeePercentage float64 `json:"management_fee_percentage"`
	GuaranteedFees          bool    `json:"guaranteed_fees"`
	GuaranteedAmount        float64 `json:"guaranteed_amount,omitempty"`
	PerformanceHurdle       string  `json:"performance_hurdle,omitempty"`
}

// VerifyTerms flags above-market fees, guaranteed fees and a missing
// performance hurdle.
func (m *Module) VerifyTerms(ctx context.Context, investmentID string, terms Terms) (*receipts.Receipt, error) {
	flags := []map[string]any{}
	if terms.ManagementFeePercentage > MarketManagementFee {
		flags = append(flags, map[string]any{
			"type":            "above_market_fee",
			"value":           terms.ManagementFeePercentage,
			"market_standard": MarketManagementFee,
		})
	}
	if terms.GuaranteedFees {
		flags = append(flags, map[string]any{"type": "guaranteed_fees", "guaranteed_amount": terms.GuaranteedAmount})
	}
	if terms.PerformanceHurdle == "" {
		flags = append(flags, map[string]any{"type": "no_performance_hurdle"})
	}

	risk := "normal"
	switch {
	case len(flags) >= 2:
		risk = "high"
	case len(flags) == 1:
		risk = "medium"
	}
	return m.emitter.Emit(ctx, "investment_terms", map[string]any{
		"investment_id":      investmentID,
		"terms":              terms,
		"unusual_flags":      flags,
		"unusual_flag_count": len(flags),
		"risk_assessment":    risk,
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// finite encodes an infinite ratio as the string "infinity" so it survives
// JSON.
func finite(v float64) any {
	if math.IsInf(v, 0) {
		return "infinity"
	}
	return v
}
