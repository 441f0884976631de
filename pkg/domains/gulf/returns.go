package gulf

import (
	"context"
	"math"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// SignificantUnderperformance is the alpha, in percentage points, below
// which a fund significantly trails its benchmark.
const SignificantUnderperformance = -10.0

// Returns is an investment valuation over a period.
type Returns struct {
	InvestmentID  string
	Period        string
	InitialValue  float64
	CurrentValue  float64
	Distributions float64
}

// Percentage is the total return in percent, zero without an initial value.
func (r Returns) Percentage() float64 {
	if r.InitialValue <= 0 {
		return 0
	}
	return (r.CurrentValue + r.Distributions - r.InitialValue) / r.InitialValue * 100
}

// ComputeReturns emits investment_returns.
func (m *Module) ComputeReturns(ctx context.Context, in Returns) (*receipts.Receipt, error) {
	pct := in.Percentage()
	return m.emitter.Emit(ctx, "investment_returns", map[string]any{
		"investment_id":     in.InvestmentID,
		"period":            in.Period,
		"initial_value":     in.InitialValue,
		"current_value":     in.CurrentValue,
		"distributions":     in.Distributions,
		"total_value":       in.CurrentValue + in.Distributions,
		"total_return":      pct / 100,
		"return_percentage": pct,
		"is_zero_return":    pct == 0 && in.InitialValue > 0,
	})
}

// CompareToBenchmark emits benchmark_comparison.
func (m *Module) CompareToBenchmark(ctx context.Context, in Returns, benchmark string, benchmarkReturn float64) (*receipts.Receipt, error) {
	fund := in.Percentage()
	alpha := fund - benchmarkReturn
	return m.emitter.Emit(ctx, "benchmark_comparison", map[string]any{
		"investment_id":                orDefault(in.InvestmentID, "unknown"),
		"fund_return_percentage":       fund,
		"benchmark":                    benchmark,
		"benchmark_return_percentage":  benchmarkReturn,
		"alpha":                        alpha,
		"underperformance":             alpha < 0,
		"significant_underperformance": alpha < SignificantUnderperformance,
	})
}

// VerifyReportedVsActual compares reported figures to audited ones.
// Differences within one cent are ignored.
func (m *Module) VerifyReportedVsActual(ctx context.Context, reported, actual map[string]float64) (*receipts.Receipt, error) {
	discrepancies := map[string]map[string]any{}
	for key, rep := range reported {
		act, ok := actual[key]
		if !ok || math.Abs(rep-act) <= 0.01 {
			continue
		}
		pct := math.Inf(1)
		if act != 0 {
			pct = (rep - act) / act * 100
		}
		discrepancies[key] = map[string]any{
			"reported":              rep,
			"actual":                act,
			"difference":            rep - act,
			"percentage_difference": finite(pct),
		}
	}
	return m.emitter.Emit(ctx, "returns_verification", map[string]any{
		"reported":                reported,
		"actual":                  actual,
		"discrepancies":           discrepancies,
		"match":                   len(discrepancies) == 0,
		"discrepancy_count":       len(discrepancies),
		"fees_collected_baseline": m.exposure.GulfFeesCollected,
	})
}
