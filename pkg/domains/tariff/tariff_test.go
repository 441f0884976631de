package tariff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

func newModule(t *testing.T) (*Module, *receipts.MemorySink) {
	t.Helper()
	sink := receipts.NewMemorySink()
	return New(receipts.NewEmitter(sink), config.Default()), sink
}

func TestIngestCustomsData_Defaults(t *testing.T) {
	m, sink := newModule(t)
	r, err := m.IngestCustomsData(context.Background(), CustomsData{RevenueAmount: 1e9})
	require.NoError(t, err)

	assert.Equal(t, "tariff_ingest", r.Type)
	assert.Equal(t, "unknown", r.String("period", ""))
	assert.Equal(t, "cbp", r.String("source", ""))
	assert.Contains(t, r.String("data_hash", ""), ":")
	assert.Equal(t, 1, sink.Len())
}

func TestComputeAllocation(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.ComputeAllocation(context.Background(), 1000, []Category{
		{Name: "deficit", Percentage: 60},
		{Name: "farm_aid", Percentage: 40},
	})
	require.NoError(t, err)
	alloc := r.Object("allocations")
	assert.InDelta(t, 600.0, alloc["deficit"], 1e-9)
	assert.InDelta(t, 400.0, alloc["farm_aid"], 1e-9)
}

func TestVerifyClaimedVsActual(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()

	r, err := m.VerifyClaimedVsActual(ctx, map[string]float64{"a": 100, "b": 50}, map[string]float64{"a": 100.005, "b": 40})
	require.NoError(t, err)
	assert.Equal(t, "discrepancy_detected", r.String("match_status", ""))
	assert.Equal(t, 1.0, r.Number("discrepancy_count"))
	d := r.Object("discrepancies")["b"].(map[string]any)
	assert.InDelta(t, 25.0, d["percentage_diff"], 1e-9)

	r, err = m.VerifyClaimedVsActual(ctx, map[string]float64{"a": 1}, map[string]float64{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "verified", r.String("match_status", ""))
}

func TestTrackTrend(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()

	var history []*receipts.Receipt
	for _, v := range []float64{10, 20, 30} {
		r, err := m.IngestCustomsData(ctx, CustomsData{RevenueAmount: v})
		require.NoError(t, err)
		history = append(history, r)
	}

	r, err := m.TrackTrend(ctx, history, 0)
	require.NoError(t, err)
	assert.Equal(t, "increasing", r.String("trend", ""))
	assert.InDelta(t, 10.0, r.Number("slope"), 1e-9)
	assert.Equal(t, 30.0, r.Number("latest_value"))
	assert.Equal(t, float64(DefaultTrendWindow), r.Number("window"))

	r, err = m.TrackTrend(ctx, history[:1], 12)
	require.NoError(t, err)
	assert.Equal(t, "insufficient_data", r.String("trend", ""))
}

func TestTrackApproval_DocumentedCriteria(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackApproval(context.Background(), "ex-1", "approved", "short", "")
	require.NoError(t, err)
	assert.False(t, r.Bool("has_documented_criteria"))

	r, err = m.TrackApproval(context.Background(), "ex-1", "approved", "meets criteria 4(b)", "")
	require.NoError(t, err)
	assert.True(t, r.Bool("has_documented_criteria"))
}

func TestDetectFavoritism(t *testing.T) {
	m, _ := newModule(t)
	outcomes := []Outcome{
		{Applicant: "Acme", Outcome: "approved"},
		{Applicant: "Acme", Outcome: "approved"},
		{Applicant: "Other", Outcome: "denied"},
		{Applicant: "Other2", Outcome: "approved"},
	}
	r, err := m.DetectFavoritism(context.Background(), outcomes, []LDAFiling{{Client: "ACME", Lobbyist: "K St"}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.Number("lobbying_approval_rate"))
	assert.Equal(t, 0.5, r.Number("baseline_approval_rate"))
	assert.True(t, r.Bool("favoritism_detected"))
	assert.Equal(t, []any{"acme"}, r.Slice("connected_entities"))
}

func TestScoreOpacity(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()

	r, err := m.ScoreOpacity(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Number("opacity_score"))
	assert.Equal(t, "critical", r.String("classification", ""))

	r, err = m.ScoreOpacity(ctx, []Exemption{
		{Rationale: "x", Criteria: "y", PublicNotice: true, DecisionDate: "2025-01-02"},
		{Rationale: "x", Criteria: "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.25, r.Number("opacity_score"))
	assert.Equal(t, "low", r.String("classification", ""))
}

func TestComputeLiability(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()
	collected := []Collection{{Amount: 100}, {Amount: 300}}

	r, err := m.ComputeLiability(ctx, collected, StatusStruckPartial)
	require.NoError(t, err)
	assert.Equal(t, 400.0, r.Number("total_collected"))
	assert.InDelta(t, 120.0, r.Object("current_scenario")["refund_liability"], 1e-9)

	r, err = m.ComputeLiability(ctx, collected, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.String("ieepa_status", ""))
	assert.Equal(t, 0.0, r.Object("current_scenario")["refund_liability"])
}

func TestTrackClaimant(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackClaimant(context.Background(), Claimant{Name: "Fund", Type: "Litigation Finance"}, 5e6)
	require.NoError(t, err)
	assert.True(t, r.Bool("is_litigation_finance"))

	assert.True(t, Claimant{Type: "importer", PurchasedRights: true}.IsLitigationFinance())
	assert.False(t, Claimant{Type: "importer"}.IsLitigationFinance())
}

func TestModelSCOTUSOutcomes(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.ModelSCOTUSOutcomes(context.Background(), []Scenario{
		{Name: "affirmed", Probability: 0.5, RefundPercentage: 0},
		{Name: "struck", Probability: 0.5, RefundPercentage: 100},
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, r.Number("expected_pct_of_baseline"), 1e-9)
	assert.Len(t, r.Slice("scenarios"), 2)
}

func TestLobbyingPipeline(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()
	filings := []LDAFiling{
		{Client: "Acme", Lobbyist: "K St", Amount: 500000, Issues: []string{"Tariff relief", "Tax"}},
		{Client: "Beta", Lobbyist: "L St", Amount: 1000},
	}
	exemptions := []Exemption{
		{ID: "1", Applicant: "ACME", Outcome: "approved"},
		{ID: "2", Applicant: "acme", Outcome: "approved"},
		{ID: "3", Applicant: "Beta", Outcome: "denied"},
		{ID: "4", Applicant: "Gamma", Outcome: "denied"},
	}

	r, err := m.IngestLDAFilings(ctx, filings)
	require.NoError(t, err)
	assert.Equal(t, []any{"Tariff relief"}, r.Slice("tariff_related_issues"))
	assert.Equal(t, 501000.0, r.Number("total_spend"))

	r, err = m.CrossReference(ctx, exemptions, filings)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Number("matches_found"))
	assert.Equal(t, 0.75, r.Number("match_rate"))

	r, err = m.DetectPattern(ctx, Matches(exemptions, filings))
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Number("patterns_detected"))
	assert.Equal(t, "high", r.String("risk_level", ""))
}

func TestDetectPattern_InfiniteRatio(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.DetectPattern(context.Background(), []Match{{Applicant: "a", Outcome: "approved", TotalLobbyingSpend: 10}})
	require.NoError(t, err)
	p := r.Slice("patterns")[0].(map[string]any)
	assert.Equal(t, "infinity", p["ratio"])
	assert.Equal(t, "medium", r.String("risk_level", ""))
}
