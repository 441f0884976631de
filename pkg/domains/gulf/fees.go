package gulf

import (
	"context"
	"fmt"
	"math"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Fee is a management fee payment.
type Fee struct {
	Type       string
	Amount     float64
	Period     string
	Source     string
	Guaranteed bool
	AUM        float64
}

// TrackFee emits management_fee.
func (m *Module) TrackFee(ctx context.Context, fundID string, fee Fee) (*receipts.Receipt, error) {
	pct := 0.0
	if fee.AUM > 0 {
		pct = fee.Amount / fee.AUM * 100
	}
	return m.emitter.Emit(ctx, "management_fee", map[string]any{
		"fund_id":        fundID,
		"fee_type":       orDefault(fee.Type, "management"),
		"fee_amount":     fee.Amount,
		"fee_period":     orDefault(fee.Period, "unknown"),
		"source":         orDefault(fee.Source, "unknown"),
		"is_guaranteed":  fee.Guaranteed,
		"aum_at_time":    fee.AUM,
		"fee_percentage": pct,
	})
}

// FeeRatio returns fees over returns and how it was derived. Zero returns
// give an infinite ratio; negative returns use the absolute value.
func FeeRatio(fees, returns float64) (float64, string) {
	switch {
	case returns == 0:
		return math.Inf(1), "infinite"
	case returns < 0:
		return math.Abs(fees / returns), "negative_returns"
	default:
		return fees / returns, "calculated"
	}
}

// ComputeFeeRatio emits fee_ratio.
func (m *Module) ComputeFeeRatio(ctx context.Context, fees, returns float64) (*receipts.Receipt, error) {
	ratio, class := FeeRatio(fees, returns)
	threshold := m.thresholds.FeeToReturnsExcessive
	return m.emitter.Emit(ctx, "fee_ratio", map[string]any{
		"fees_collected":            fees,
		"returns_generated":         returns,
		"ratio":                     finite(ratio),
		"ratio_classification":      class,
		"threshold":                 threshold,
		"excessive":                 ratio > threshold,
		"affinity_baseline_fees":    m.exposure.GulfFeesCollected,
		"affinity_baseline_returns": 0,
	})
}

// FlagExcessive emits excessive_fee_flag. A ratio above threshold emits an
// alert anomaly first. A non-positive threshold uses the configured one.
func (m *Module) FlagExcessive(ctx context.Context, ratio, threshold float64) (*receipts.Receipt, error) {
	if threshold <= 0 {
		threshold = m.thresholds.FeeToReturnsExcessive
	}
	excessive := ratio > threshold
	if excessive {
		delta := 100.0
		if !math.IsInf(ratio, 1) {
			delta = ratio - threshold
		}
		if _, err := m.emitter.EmitAnomaly(ctx, receipts.Anomaly{
			Metric:         "excessive_fees",
			Baseline:       threshold,
			Delta:          delta,
			Classification: receipts.ClassDeviation,
			Action:         receipts.ActionAlert,
		}); err != nil {
			return nil, fmt.Errorf("gulf: fee anomaly: %w", err)
		}
	}

	severity := "low"
	switch {
	case ratio > threshold*10:
		severity = "critical"
	case ratio > threshold*5:
		severity = "high"
	case excessive:
		severity = "medium"
	}
	recommendation := "none"
	if excessive {
		recommendation = "review_fee_structure"
	}
	return m.emitter.Emit(ctx, "excessive_fee_flag", map[string]any{
		"ratio":          finite(ratio),
		"threshold":      threshold,
		"is_excessive":   excessive,
		"severity":       severity,
		"recommendation": recommendation,
	})
}
