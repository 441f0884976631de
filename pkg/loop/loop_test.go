package loop

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

func newCorrelator(t *testing.T) (*Correlator, *receipts.MemorySink) {
	t.Helper()
	sink := receipts.NewMemorySink()
	return New(receipts.NewEmitter(sink), config.Default()), sink
}

func rec(typ string, fields map[string]any) *receipts.Receipt {
	r := receipts.FromMap(fields)
	r.Type = typ
	return r
}

func TestRunCycle_Empty(t *testing.T) {
	c, _ := newCorrelator(t)

	r, err := c.RunCycle(context.Background(), nil, "")
	require.NoError(t, err)

	assert.Equal(t, "loop_cycle", r.Type)
	assert.Equal(t, 0.0, r.Number("receipts_processed"))
	assert.Equal(t, 0.0, r.Number("priority_violations"))
	assert.Len(t, r.String("cycle_id", ""), 16)
	assert.True(t, r.Bool("within_target"))
	assert.Equal(t, 60.0, r.Number("target_cycle_seconds"))
	assert.Empty(t, r.Slice("modules_active"))
}

func TestRunCycle_CountsAndTarget(t *testing.T) {
	c, _ := newCorrelator(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	c.WithClock(func() time.Time {
		calls++
		return now.Add(time.Duration(calls-1) * 61 * time.Second)
	})

	rs := []*receipts.Receipt{
		rec("detention", map[string]any{"detainee_count": 10}),
		rec("death_rate", map[string]any{"violation": true}),
		rec("anomaly", map[string]any{"metric": "death_rate"}),
		rec("fee_ratio", map[string]any{"excessive": true}),
	}
	r, err := c.RunCycle(context.Background(), rs, "cycle-1")
	require.NoError(t, err)

	assert.Equal(t, "cycle-1", r.String("cycle_id", ""))
	assert.Equal(t, 4.0, r.Number("receipts_processed"))
	assert.Equal(t, 1.0, r.Number("anomalies_detected"))
	assert.Equal(t, 2.0, r.Number("priority_violations"))
	assert.Equal(t, 61000.0, r.Number("cycle_time_ms"))
	assert.False(t, r.Bool("within_target"))
	assert.Equal(t, []any{"border", "unknown", "gulf"}, r.Slice("modules_active"))
}

func TestSenseAnalyze_PriorityOrder(t *testing.T) {
	c, _ := newCorrelator(t)
	rs := []*receipts.Receipt{
		rec("license_registration", map[string]any{"violation": true}),
		rec("favoritism_detection", map[string]any{"favoritism_detected": true}),
		rec("citizen_flag", map[string]any{"violation": true}),
		rec("emolument_assessment", map[string]any{"is_emolument": true}),
	}

	st := c.Sense(rs)
	assert.Equal(t, 4, st.TotalReceipts)
	assert.Equal(t, 1, st.ByType["citizen_flag"])
	assert.Equal(t, 1, st.ByModule["border"].Count)

	a := c.Analyze(st)
	got := make([]string, len(a.PriorityViolations))
	for i, v := range a.PriorityViolations {
		got[i] = v.Module + "/" + v.ReceiptType
	}
	want := []string{"border/citizen_flag", "tariff/favoritism_detection", "license/license_registration"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("priority violations mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectEntityOverlap(t *testing.T) {
	c, _ := newCorrelator(t)
	modules := map[string][]*receipts.Receipt{
		"golf":    {rec("liv_event", map[string]any{"entity_name": "Saudi PIF"})},
		"gulf":    {rec("swf_investment", map[string]any{"entity_name": "Saudi PIF"})},
		"license": {rec("partner_registration", map[string]any{"entity_name": "Different Entity"})},
	}

	r, err := c.DetectEntityOverlap(context.Background(), modules)
	require.NoError(t, err)

	assert.Equal(t, 2.0, r.Number("total_entities"))
	assert.Equal(t, 1.0, r.Number("overlapping_entities"))
	assert.Equal(t, 2.0, r.Number("max_overlap"))
	assert.Equal(t, []any{"golf", "gulf", "license"}, r.Slice("modules_analyzed"))

	overlaps := r.Slice("overlaps")
	require.Len(t, overlaps, 1)
	o := overlaps[0].(map[string]any)
	assert.Equal(t, "saudi pif", o["entity"])
	assert.Equal(t, []any{"golf", "gulf"}, o["modules"])
}

func TestOverlaps_SortedAndBounded(t *testing.T) {
	modules := map[string][]*receipts.Receipt{}
	for _, m := range []string{"a", "b", "c"} {
		for i := 0; i < 60; i++ {
			modules[m] = append(modules[m], rec("x", map[string]any{"entity_id": i + 1}))
		}
	}
	modules["c"] = append(modules["c"], rec("x", map[string]any{"entity_name": "solo"}))
	modules["a"] = append(modules["a"], rec("x", map[string]any{"fund_name": "pair"}))
	modules["b"] = append(modules["b"], rec("x", map[string]any{"fund_name": "PAIR"}))

	overlaps, total := Overlaps(modules)
	assert.Equal(t, 62, total)
	assert.Len(t, overlaps, 61)
	assert.Equal(t, 3, overlaps[0].ModuleCount)
	assert.Equal(t, "pair", overlaps[len(overlaps)-1].Entity)

	c, _ := newCorrelator(t)
	r, err := c.DetectEntityOverlap(context.Background(), modules)
	require.NoError(t, err)
	assert.Len(t, r.Slice("overlaps"), MaxReportedOverlaps)
	assert.Equal(t, 61.0, r.Number("overlapping_entities"))
}

func TestTraceMoneyFlow_Direction(t *testing.T) {
	c, _ := newCorrelator(t)
	rs := []*receipts.Receipt{
		rec("payment", map[string]any{"recipient_name": "Acme", "source_name": "Fund X", "amount": 1000}),
		rec("payment", map[string]any{"source_name": "Acme", "recipient_name": "Vendor", "payment_amount": 250}),
		rec("payment", map[string]any{"recipient_name": "Acme", "amount": 0}),
		rec("payment", map[string]any{"recipient_name": "Other", "amount": 5}),
	}

	r, err := c.TraceMoneyFlow(context.Background(), "acme", rs)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, r.Number("total_inflow"))
	assert.Equal(t, 250.0, r.Number("total_outflow"))
	assert.Equal(t, 750.0, r.Number("net_flow"))
	assert.Equal(t, 2.0, r.Number("flow_count"))

	flows := r.Slice("flows")
	first := flows[0].(map[string]any)
	assert.Equal(t, "inflow", first["direction"])
	assert.Equal(t, "fund x", first["counterparty"])
	assert.Equal(t, "golf", first["module"])
	second := flows[1].(map[string]any)
	assert.Equal(t, "outflow", second["direction"])
	assert.Equal(t, "vendor", second["counterparty"])
}

func TestComputeCentrality(t *testing.T) {
	c, _ := newCorrelator(t)
	rs := []*receipts.Receipt{
		rec("swf_investment", map[string]any{"fund_name": "Saudi PIF", "amount": 2e9}),
		rec("liv_event", map[string]any{"fund_name": "Saudi PIF", "amount": 4.58e7}),
		rec("detention", map[string]any{"contractor_name": "GEO", "amount": 999}),
	}

	scores := c.Centrality([]string{"GEO", "Saudi PIF", "Nobody"}, rs)
	require.Len(t, scores, 3)
	assert.Equal(t, "Saudi PIF", scores[0].Entity)
	assert.Equal(t, 2, scores[0].Connections)
	assert.Equal(t, []string{"golf", "gulf"}, scores[0].Modules)
	assert.InDelta(t, 2*2*math.Log10(2e9+4.58e7+1), scores[0].CentralityScore, 1e-9)
	assert.Equal(t, "GEO", scores[1].Entity)
	assert.Equal(t, 0.0, scores[2].CentralityScore)

	r, err := c.ComputeCentrality(context.Background(), []string{"Saudi PIF"}, rs)
	require.NoError(t, err)
	assert.Equal(t, "Saudi PIF", r.Object("most_central")["entity"])

	r, err = c.ComputeCentrality(context.Background(), nil, rs)
	require.NoError(t, err)
	assert.True(t, r.Has("most_central"))
	assert.Nil(t, r.Fields["most_central"])
}

func TestHarvestViolations_Idempotent(t *testing.T) {
	c, _ := newCorrelator(t)
	rs := []*receipts.Receipt{
		rec("anomaly", map[string]any{"metric": "x"}),
		rec("death_rate", map[string]any{"violation": true}),
		rec("emolument_assessment", map[string]any{"is_emolument": true}),
		rec("fara_check", map[string]any{"fara_violation": true}),
		rec("detention", map[string]any{"detainee_count": 4}),
	}
	ctx := context.Background()

	h1, err := c.HarvestViolations(ctx, rs, "")
	require.NoError(t, err)
	h2, err := c.HarvestViolations(ctx, rs, "")
	require.NoError(t, err)

	assert.Equal(t, "last_30_days", h1.String("period", ""))
	assert.Equal(t, 4.0, h1.Number("total_violations"))
	assert.Equal(t, h1.Number("total_violations"), h2.Number("total_violations"))
	if diff := cmp.Diff(h1.Object("by_module"), h2.Object("by_module")); diff != "" {
		t.Errorf("by_module differs between runs:\n%s", diff)
	}
	assert.Equal(t, map[string]any{"unknown": 1.0, "border": 1.0, "golf": 1.0, "gulf": 1.0}, h1.Object("by_module"))
	assert.Equal(t, h1.PayloadHash, h2.PayloadHash)
	assert.Len(t, rs, 5)
}

func TestHarvestViolations_HonoursDomainField(t *testing.T) {
	c, _ := newCorrelator(t)
	rs := []*receipts.Receipt{
		rec("screening", map[string]any{"violation": true, "domain": "golf"}),
		rec("screening", map[string]any{"violation": true}),
	}

	h, err := c.HarvestViolations(context.Background(), rs, "q1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"golf": 1.0, "unknown": 1.0}, h.Object("by_module"))

	st := c.Sense(rs)
	assert.Equal(t, []string{"golf", "unknown"}, st.ModuleOrder)
}

func TestRankByExposure(t *testing.T) {
	c, _ := newCorrelator(t)
	in := []*receipts.Receipt{
		rec("a", map[string]any{"amount": 10}),
		rec("b", map[string]any{"liability": 90e9}),
		rec("c", map[string]any{"fees_collected": 157e6}),
		rec("d", nil),
		rec("e", map[string]any{"amount": 0, "total_amount": 10}),
	}
	ranked := c.RankByExposure(in)

	got := make([]string, len(ranked))
	for i, r := range ranked {
		got[i] = r.Type
	}
	assert.Equal(t, []string{"b", "c", "a", "e", "d"}, got)
	assert.Equal(t, "a", in[0].Type)
}

func TestProposeRemediation(t *testing.T) {
	c, _ := newCorrelator(t)
	var vs []*receipts.Receipt
	for i := 0; i < 5; i++ {
		vs = append(vs, rec("death_rate", nil))
	}
	for i := 0; i < 3; i++ {
		vs = append(vs, rec("excessive_fee_flag", nil))
	}
	vs = append(vs, rec("citizen_flag", nil), rec("citizen_flag", nil))
	for i := 0; i < 3; i++ {
		vs = append(vs, rec("sdn_flag", nil))
	}

	want := []Proposal{
		{"death_rate", 5, "facility_inspection_mandate", "high"},
		{"excessive_fee_flag", 3, "fee_structure_review", "medium"},
		{"sdn_flag", 3, "manual_review_required", "medium"},
	}
	if diff := cmp.Diff(want, Proposals(vs)); diff != "" {
		t.Errorf("proposals mismatch (-want +got):\n%s", diff)
	}

	r, err := c.ProposeRemediation(context.Background(), vs)
	require.NoError(t, err)
	assert.Equal(t, 13.0, r.Number("violations_analyzed"))
	assert.Equal(t, 3.0, r.Number("recurring_patterns"))
}

func TestRemediationAction(t *testing.T) {
	assert.Equal(t, "implement_blind_review_process", RemediationAction("favoritism_detection"))
	assert.Equal(t, "doj_referral", RemediationAction("FARA_VIOLATION"))
	assert.Equal(t, "disclosure_requirement", RemediationAction("emolument_assessment"))
	assert.Equal(t, "beneficial_ownership_disclosure", RemediationAction("opacity_flag"))
	assert.Equal(t, "immediate_review_protocol", RemediationAction("citizen_flag"))
	assert.Equal(t, "manual_review_required", RemediationAction("anomaly"))
}

func TestMalformedFieldsDoNotAbort(t *testing.T) {
	c, _ := newCorrelator(t)
	rs := []*receipts.Receipt{
		nil,
		rec("", nil),
		rec("payment", map[string]any{"amount": "lots", "recipient_name": 42, "entity_name": []any{"x"}}),
		rec("fee_ratio", map[string]any{"excessive": "yes"}),
	}
	ctx := context.Background()

	_, err := c.RunCycle(ctx, rs, "x")
	require.NoError(t, err)
	_, err = c.HarvestViolations(ctx, rs, "q1")
	require.NoError(t, err)
	_, err = c.TraceMoneyFlow(ctx, "42", rs)
	require.NoError(t, err)
	_, err = c.ComputeCentrality(ctx, []string{"42"}, rs)
	require.NoError(t, err)
	_, err = c.DetectPIFPattern(ctx, rs)
	require.NoError(t, err)
	_, err = c.DetectEntityOverlap(ctx, c.GroupByDomain(rs))
	require.NoError(t, err)
}
