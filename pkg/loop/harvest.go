package loop

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/observability"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Remediation thresholds on recurring violation types.
const (
	RecurringThreshold    = 3
	HighPriorityThreshold = 5
)

// remediationActions is matched in order against the lower-cased receipt_type.
var remediationActions = []struct {
	key    string
	action string
}{
	{"favoritism_detection", "implement_blind_review_process"},
	{"excessive_fee", "fee_structure_review"},
	{"fara_violation", "doj_referral"},
	{"emolument", "disclosure_requirement"},
	{"citizen_flag", "immediate_review_protocol"},
	{"death_rate", "facility_inspection_mandate"},
	{"opacity", "beneficial_ownership_disclosure"},
}

// DefaultRemediation is proposed for violation types with no mapped action.
const DefaultRemediation = "manual_review_required"

// RemediationAction returns the proposed action for a violation type.
func RemediationAction(violationType string) string {
	t := strings.ToLower(violationType)
	for _, ra := range remediationActions {
		if strings.Contains(t, ra.key) {
			return ra.action
		}
	}
	return DefaultRemediation
}

// Violations returns the receipts the harvest detector flags, in order.
func (c *Correlator) Violations(rs []*receipts.Receipt) []*receipts.Receipt {
	out := []*receipts.Receipt{}
	for _, r := range rs {
		if r != nil && c.harvest.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// HarvestViolations collects every violation-like receipt, groups it by
// domain and emits a harvest receipt. An empty period defaults to the
// configured harvest window.
func (c *Correlator) HarvestViolations(ctx context.Context, rs []*receipts.Receipt, period string) (_ *receipts.Receipt, err error) {
	ctx, done := c.tracker.TrackOperation(ctx, "loop.harvest", observability.AttrReceipts.Int(len(rs)))
	defer func() { done(err) }()

	if period == "" {
		period = fmt.Sprintf("last_%d_days", c.harvestDays)
	}

	violations := c.Violations(rs)
	byModule := map[string]int{}
	flat := make([]map[string]any, len(violations))
	for i, v := range violations {
		byModule[c.classifier.InferReceipt(v)]++
		flat[i] = v.Map()
	}

	return c.emitter.Emit(ctx, "harvest", map[string]any{
		"period":              period,
		"total_violations":    len(violations),
		"by_module":           byModule,
		"violations":          flat,
		"harvest_period_days": c.harvestDays,
	})
}

// ExposureOf is the first non-zero exposure-like field of r.
func ExposureOf(r *receipts.Receipt) float64 {
	return r.FirstNumber("amount", "total_amount", "exposure", "liability", "fees_collected")
}

// RankByExposure returns violations sorted by dollar exposure, highest
// first. Ties keep their input order. The input is not modified.
func (c *Correlator) RankByExposure(violations []*receipts.Receipt) []*receipts.Receipt {
	ranked := make([]*receipts.Receipt, len(violations))
	copy(ranked, violations)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ExposureOf(ranked[i]) > ExposureOf(ranked[j])
	})
	return ranked
}

// Proposal is a remediation proposed for a recurring violation type.
type Proposal struct {
	ViolationType   string `json:"violation_type"`
	OccurrenceCount int    `json:"occurrence_count"`
	ProposedAction  string `json:"proposed_action"`
	Priority        string `json:"priority"`
}

// Proposals counts violations per receipt_type and proposes an action for
// every type recurring at least RecurringThreshold times, in order of first
// occurrence.
func Proposals(violations []*receipts.Receipt) []Proposal {
	counts := map[string]int{}
	var order []string
	for _, v := range violations {
		t := v.Type
		if t == "" {
			t = "unknown"
		}
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t]++
	}

	proposals := []Proposal{}
	for _, t := range order {
		n := counts[t]
		if n < RecurringThreshold {
			continue
		}
		priority := "medium"
		if n >= HighPriorityThreshold {
			priority = "high"
		}
		proposals = append(proposals, Proposal{
			ViolationType:   t,
			OccurrenceCount: n,
			ProposedAction:  RemediationAction(t),
			Priority:        priority,
		})
	}
	return proposals
}

// ProposeRemediation emits a remediation_proposal receipt for violations.
func (c *Correlator) ProposeRemediation(ctx context.Context, violations []*receipts.Receipt) (*receipts.Receipt, error) {
	proposals := Proposals(violations)
	return c.emitter.Emit(ctx, "remediation_proposal", map[string]any{
		"violations_analyzed": len(violations),
		"recurring_patterns":  len(proposals),
		"proposals":           proposals,
	})
}
