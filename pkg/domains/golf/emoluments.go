package golf

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const (
	// MessitteStandard is the court's reading of "emolument".
	MessitteStandard = "almost anything of value from foreign governments"
	// EstimatedUpperBound is the upper estimate of foreign payments.
	EstimatedUpperBound = 160000000.0
)

// StateLinked reports whether the source is a government, state-owned or
// sovereign entity.
func (s Source) StateLinked() bool {
	return s.IsGovernment || s.IsStateOwned || s.IsSovereign
}

// AssessEmolument emits emolument_assessment. An emolument at or above the
// disclosure threshold emits an alert anomaly first.
func (m *Module) AssessEmolument(ctx context.Context, p Payment) (*receipts.Receipt, error) {
	threshold := m.thresholds.EmolumentsDisclosure
	foreign := !p.Source.Domestic()
	government := p.Source.StateLinked()
	emolument := foreign && government && p.Amount > 0

	if emolument && p.Amount >= threshold {
		if _, err := m.emitter.EmitAnomaly(ctx, receipts.Anomaly{
			Metric:         "emolument_detected",
			Baseline:       threshold,
			Delta:          p.Amount - threshold,
			Classification: receipts.ClassViolation,
			Action:         receipts.ActionAlert,
		}); err != nil {
			return nil, fmt.Errorf("golf: emolument anomaly: %w", err)
		}
	}

	return m.emitter.Emit(ctx, "emolument_assessment", map[string]any{
		"payment_id":           orDefault(p.ID, "unknown"),
		"amount":               p.Amount,
		"source_name":          orDefault(p.Source.Name, "unknown"),
		"source_country":       orDefault(p.Source.Country, "unknown"),
		"is_foreign":           foreign,
		"is_government":        government,
		"is_emolument":         emolument,
		"disclosure_threshold": threshold,
		"exceeds_threshold":    p.Amount >= threshold,
		"messitte_standard":    MessitteStandard,
	})
}

// TrackForeignGovernment totals payments whose source country or name is
// government, per recipient property.
func (m *Module) TrackForeignGovernment(ctx context.Context, payments []Payment, government string) (*receipts.Receipt, error) {
	gov := strings.ToLower(government)
	byProperty := map[string]*CountryTotal{}
	total := 0.0
	count := 0
	for _, p := range payments {
		if strings.ToLower(p.Source.Country) != gov && strings.ToLower(p.Source.Name) != gov {
			continue
		}
		count++
		total += p.Amount
		prop := orDefault(p.RecipientProperty, "unknown")
		pt, ok := byProperty[prop]
		if !ok {
			pt = &CountryTotal{}
			byProperty[prop] = pt
		}
		pt.Total += p.Amount
		pt.Count++
	}

	return m.emitter.Emit(ctx, "government_tracking", map[string]any{
		"government":                   government,
		"payment_count":                count,
		"total_amount":                 total,
		"by_property":                  byProperty,
		"properties_count":             len(byProperty),
		"exceeds_disclosure_threshold": total >= m.thresholds.EmolumentsDisclosure,
	})
}

// ComputeExposure emits emoluments_exposure over all payments. Only
// government and sovereign sources count here; state-owned enterprises do
// not.
func (m *Module) ComputeExposure(ctx context.Context, payments []Payment) (*receipts.Receipt, error) {
	var total, emoluments float64
	count := 0
	byCountry := map[string]float64{}
	for _, p := range payments {
		total += p.Amount
		if p.Source.Domestic() || !(p.Source.IsGovernment || p.Source.IsSovereign) {
			continue
		}
		count++
		emoluments += p.Amount
		byCountry[orDefault(p.Source.Country, "unknown")] += p.Amount
	}
	pct := 0.0
	if total > 0 {
		pct = emoluments / total * 100
	}

	return m.emitter.Emit(ctx, "emoluments_exposure", map[string]any{
		"total_payments_analyzed":  len(payments),
		"total_payment_amount":     total,
		"emolument_count":          count,
		"emoluments_total":         emoluments,
		"emoluments_percentage":    pct,
		"by_country":               byCountry,
		"countries_count":          len(byCountry),
		"crew_documented_baseline": CREWDocumentedBaseline,
		"estimated_upper_bound":    EstimatedUpperBound,
	})
}
