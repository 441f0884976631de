// Package tariff scores tariff revenue, exemption, refund and lobbying
// records. Each function emits exactly one receipt.
package tariff

import (
	"context"
	"fmt"
	"math"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Module holds the emitter and constants shared by the tariff functions.
type Module struct {
	emitter    *receipts.Emitter
	exposure   config.Exposure
	thresholds config.Thresholds
}

// New creates the tariff module.
func New(e *receipts.Emitter, cfg *config.Config) *Module {
	return &Module{emitter: e, exposure: cfg.Exposure, thresholds: cfg.Thresholds}
}

// CustomsData is one CBP revenue record.
type CustomsData struct {
	RevenueAmount float64 `json:"revenue_amount"`
	Period        string  `json:"period,omitempty"`
	Source        string  `json:"source,omitempty"`
}

// IngestCustomsData emits tariff_ingest for a CBP revenue record.
func (m *Module) IngestCustomsData(ctx context.Context, data CustomsData) (*receipts.Receipt, error) {
	dataHash, err := m.emitter.Hasher().Hash(data)
	if err != nil {
		return nil, fmt.Errorf("tariff: hash customs data: %w", err)
	}
	return m.emitter.Emit(ctx, "tariff_ingest", map[string]any{
		"revenue_amount": data.RevenueAmount,
		"period":         orDefault(data.Period, "unknown"),
		"source":         orDefault(data.Source, "cbp"),
		"data_hash":      dataHash,
	})
}

// Category is a named share of revenue.
type Category struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// ComputeAllocation splits revenue across categories.
func (m *Module) ComputeAllocation(ctx context.Context, revenue float64, categories []Category) (*receipts.Receipt, error) {
	allocations := map[string]float64{}
	for _, c := range categories {
		allocations[orDefault(c.Name, "unknown")] = revenue * (c.Percentage / 100)
	}
	return m.emitter.Emit(ctx, "tariff_allocation", map[string]any{
		"total_revenue":   revenue,
		"categories":      categories,
		"allocations":     allocations,
		"fy2025_baseline": m.exposure.TariffFY2025Revenue,
	})
}

// Discrepancy between a claimed and an actual figure.
type Discrepancy struct {
	Claimed        float64 `json:"claimed"`
	Actual         float64 `json:"actual"`
	Difference     float64 `json:"difference"`
	PercentageDiff float64 `json:"percentage_diff"`
}

// VerifyClaimedVsActual compares claimed figures to CBP data. Differences
// within one cent are ignored.
func (m *Module) VerifyClaimedVsActual(ctx context.Context, claimed, actual map[string]float64) (*receipts.Receipt, error) {
	discrepancies := map[string]Discrepancy{}
	for key, c := range claimed {
		a, ok := actual[key]
		if !ok {
			continue
		}
		diff := c - a
		if math.Abs(diff) <= 0.01 {
			continue
		}
		pct := 0.0
		if a != 0 {
			pct = diff / a * 100
		}
		discrepancies[key] = Discrepancy{Claimed: c, Actual: a, Difference: diff, PercentageDiff: pct}
	}

	status := "verified"
	if len(discrepancies) > 0 {
		status = "discrepancy_detected"
	}
	return m.emitter.Emit(ctx, "tariff_verification", map[string]any{
		"claimed":           claimed,
		"actual":            actual,
		"discrepancies":     discrepancies,
		"match_status":      status,
		"discrepancy_count": len(discrepancies),
	})
}

// DefaultTrendWindow is the number of periods TrackTrend inspects.
const DefaultTrendWindow = 12

// TrackTrend fits a least-squares slope to the revenue_amount of the last
// window receipts.
func (m *Module) TrackTrend(ctx context.Context, history []*receipts.Receipt, window int) (*receipts.Receipt, error) {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	start := len(history) - window
	if start < 0 {
		start = 0
	}
	var values []float64
	for _, r := range history[start:] {
		if r != nil && r.Has("revenue_amount") {
			values = append(values, r.Number("revenue_amount"))
		}
	}

	trend, slope := "insufficient_data", 0.0
	if len(values) >= 2 {
		slope = linearSlope(values)
		switch {
		case slope > 0:
			trend = "increasing"
		case slope < 0:
			trend = "decreasing"
		default:
			trend = "flat"
		}
	}
	latest := 0.0
	if len(values) > 0 {
		latest = values[len(values)-1]
	}

	return m.emitter.Emit(ctx, "tariff_trend", map[string]any{
		"window":        window,
		"data_points":   len(values),
		"trend":         trend,
		"slope":         slope,
		"latest_value":  latest,
		"fy2025_target": m.exposure.TariffFY2025Revenue,
	})
}

func linearSlope(values []float64) float64 {
	n := float64(len(values))
	var xSum, ySum, xySum, x2Sum float64
	for i, v := range values {
		x := float64(i)
		xSum += x
		ySum += v
		xySum += x * v
		x2Sum += x * x
	}
	den := n*x2Sum - xSum*xSum
	if den == 0 {
		return 0
	}
	return (n*xySum - xSum*ySum) / den
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
