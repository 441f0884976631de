package sim

import (
	"context"
	"math"
	"math/rand"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/domain"
	"github.com/northstaraokeystone/trumpproof/pkg/domains/gulf"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Per-cycle event probabilities.
const (
	deathEventRate      = 0.02
	citizenDetainRate   = 0.05
	zeroReturnRate      = 0.7
	livEventRate        = 0.3
	emolumentRate       = 0.4
	pifCrossRefRate     = 0.5
	tamperRate          = 0.1
	unverifiedClaimRate = 0.05
)

var ieepaStatuses = []string{"pending", "affirmed", "struck"}

// runner holds the state of one run. It is confined to a single goroutine.
type runner struct {
	sc       Config
	emitter  *receipts.Emitter
	rng      *rand.Rand
	exposure config.Exposure
}

func (r *runner) uniform(lo, hi float64) float64 {
	return lo + r.rng.Float64()*(hi-lo)
}

func (r *runner) gauss(mu, sigma float64) float64 {
	return mu + r.rng.NormFloat64()*sigma
}

// randInt returns an integer in [lo, hi].
func (r *runner) randInt(lo, hi int) int {
	return lo + r.rng.Intn(hi-lo+1)
}

func (r *runner) emit(ctx context.Context, receiptType string, cycle int, payload map[string]any) (*receipts.Receipt, error) {
	payload["cycle"] = cycle
	return r.emitter.Emit(ctx, receiptType, payload)
}

// module runs one module for one cycle. In GODEL the last receipt is
// sometimes tampered with and re-verified, which fires the hash-mismatch
// StopRule.
func (r *runner) module(ctx context.Context, module string, cycle int) error {
	var (
		last *receipts.Receipt
		err  error
	)
	switch module {
	case domain.Tariff:
		last, err = r.tariff(ctx, cycle)
	case domain.Border:
		last, err = r.border(ctx, cycle)
	case domain.Gulf:
		last, err = r.gulf(ctx, cycle)
	case domain.Golf:
		last, err = r.golf(ctx, cycle)
	case domain.License:
		last, err = r.license(ctx, cycle)
	}
	if err != nil {
		return err
	}

	if r.sc.Scenario != Godel || last == nil {
		return nil
	}
	if r.rng.Float64() < tamperRate {
		return r.emitter.Verify(ctx, tamper(last))
	}
	if module == domain.License && r.rng.Float64() < unverifiedClaimRate {
		return r.emitter.StopUnverifiedClaim(ctx, map[string]any{
			"type":   "beneficial_owner",
			"source": "unattributed",
			"cycle":  cycle,
		})
	}
	return nil
}

// tamper returns a copy of rc with one payload value changed and the
// original payload_hash kept.
func tamper(rc *receipts.Receipt) *receipts.Receipt {
	t := *rc
	t.Fields = make(map[string]any, len(rc.Fields)+1)
	for k, v := range rc.Fields {
		t.Fields[k] = v
	}
	t.Fields["tampered"] = true
	return &t
}

func (r *runner) tariff(ctx context.Context, cycle int) (*receipts.Receipt, error) {
	revenue := r.gauss(r.exposure.TariffFY2025Revenue/float64(max(r.sc.Cycles, 1)), 1e9)
	if r.sc.Scenario == Godel && cycle%10 == 0 {
		revenue = 0
	}
	last, err := r.emit(ctx, "tariff_ingest", cycle, map[string]any{
		"revenue_amount": math.Max(0, revenue),
	})
	if err != nil {
		return nil, err
	}

	if r.sc.Scenario == TariffSCOTUS {
		outcome := "denied"
		if r.rng.Float64() < r.gauss(0.6, 0.1) {
			outcome = "approved"
		}
		if _, err := r.emit(ctx, "exemption_outcome", cycle, map[string]any{"outcome": outcome}); err != nil {
			return nil, err
		}
		last, err = r.emit(ctx, "refund_liability", cycle, map[string]any{
			"liability":    r.exposure.TariffRefundLiability * r.uniform(0.3, 1.0),
			"ieepa_status": ieepaStatuses[r.rng.Intn(len(ieepaStatuses))],
		})
		if err != nil {
			return nil, err
		}
	}

	if r.sc.Scenario == CrossDomainPIF && r.rng.Float64() < pifCrossRefRate {
		last, err = r.emit(ctx, "pif_cfius_review", cycle, map[string]any{
			"entity_name":      "Saudi PIF",
			"is_pif_connected": true,
			"domain":           domain.Tariff,
		})
		if err != nil {
			return nil, err
		}
	}
	return last, nil
}

func (r *runner) border(ctx context.Context, cycle int) (*receipts.Receipt, error) {
	last, err := r.emit(ctx, "detention", cycle, map[string]any{
		"detainee_count": r.randInt(50, 200),
	})
	if err != nil {
		return nil, err
	}
	if r.sc.Scenario != BorderAccountability {
		return last, nil
	}

	if r.sc.injects(EventDeath) || r.rng.Float64() < deathEventRate {
		last, err = r.emit(ctx, "death_rate", cycle, map[string]any{
			"deaths":    r.randInt(1, 3),
			"violation": true,
		})
		if err != nil {
			return nil, err
		}
	}
	if r.sc.injects(EventCitizenDetention) || r.rng.Float64() < citizenDetainRate {
		last, err = r.emit(ctx, "citizen_flag", cycle, map[string]any{
			"is_citizen": true,
			"violation":  true,
		})
		if err != nil {
			return nil, err
		}
	}
	return last, nil
}

func (r *runner) gulf(ctx context.Context, cycle int) (*receipts.Receipt, error) {
	last, err := r.emit(ctx, "swf_investment", cycle, map[string]any{
		"amount":           r.exposure.GulfPIFInvestment,
		"fund_name":        "Saudi PIF",
		"is_pif_connected": true,
		"domain":           domain.Gulf,
	})
	if err != nil {
		return nil, err
	}
	if r.sc.Scenario != GulfReturns {
		return last, nil
	}

	returnsPct := 0.0
	if r.rng.Float64() >= zeroReturnRate {
		returnsPct = r.gauss(5, 3)
	}
	fees := r.uniform(100_000_000, 200_000_000)
	generated := returnsPct * r.exposure.GulfPIFInvestment / 100

	if _, err := r.emit(ctx, "investment_returns", cycle, map[string]any{
		"return_percentage": returnsPct,
		"is_zero_return":    returnsPct == 0,
	}); err != nil {
		return nil, err
	}

	ratio, _ := gulf.FeeRatio(fees, generated)
	var ratioValue any = ratio
	if math.IsInf(ratio, 0) {
		ratioValue = "infinity"
	}
	return r.emit(ctx, "fee_ratio", cycle, map[string]any{
		"fees_collected":    fees,
		"returns_generated": generated,
		"ratio":             ratioValue,
		"excessive":         returnsPct == 0,
	})
}

func (r *runner) golf(ctx context.Context, cycle int) (*receipts.Receipt, error) {
	if r.rng.Float64() < livEventRate {
		_, err := r.emit(ctx, "liv_event", cycle, map[string]any{
			"pif_funding":       r.exposure.GolfLIVPIFInvestment / 100,
			"is_trump_property": r.rng.Float64() < 0.5,
			"is_pif_connected":  true,
			"domain":            domain.Golf,
		})
		if err != nil {
			return nil, err
		}
	}
	return r.emit(ctx, "emolument_assessment", cycle, map[string]any{
		"amount":       r.uniform(10_000, 100_000),
		"is_emolument": r.rng.Float64() < emolumentRate,
	})
}

func (r *runner) license(ctx context.Context, cycle int) (*receipts.Receipt, error) {
	last, err := r.emit(ctx, "license_registration", cycle, map[string]any{
		"project_value": r.uniform(100_000_000, 1_000_000_000),
	})
	if err != nil {
		return nil, err
	}
	if r.rng.Float64() < pifCrossRefRate {
		last, err = r.emit(ctx, "pif_cross_reference", cycle, map[string]any{
			"is_pif_connected": true,
			"domain":           domain.License,
		})
		if err != nil {
			return nil, err
		}
	}
	return last, nil
}
