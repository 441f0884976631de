package gulf

import (
	"context"
	"math"
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

func TestRegisterSWFInvestment(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.RegisterSWFInvestment(context.Background(),
		Fund{Name: "PIF", Country: "Saudi Arabia", OverrideBy: "MBS"},
		Recipient{ID: "affinity", Name: "Affinity Partners"},
		2e9,
	)
	require.NoError(t, err)
	assert.Len(t, r.String("fund_id", ""), 12)
	assert.Equal(t, "affinity", r.String("recipient_id", ""))
	assert.Equal(t, "MBS", r.String("override_by", ""))
	assert.Equal(t, "unknown", r.String("screening_panel_recommendation", ""))
}

func TestTrackDeployment(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackDeployment(context.Background(), "inv-1", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 25.0, r.Number("deployment_percentage"))
	assert.True(t, r.Bool("low_deployment_flag"))
}

func TestVerifyTerms(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.VerifyTerms(context.Background(), "inv-1", Terms{ManagementFeePercentage: 2.5, GuaranteedFees: true})
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Number("unusual_flag_count"))
	assert.Equal(t, "high", r.String("risk_assessment", ""))

	r, err = m.VerifyTerms(context.Background(), "inv-2", Terms{ManagementFeePercentage: 1.5, PerformanceHurdle: "8%"})
	require.NoError(t, err)
	assert.Equal(t, "normal", r.String("risk_assessment", ""))
}

func TestTrackFee(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackFee(context.Background(), "fund-1", Fee{Amount: 20, AUM: 1000})
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Number("fee_percentage"))
	assert.Equal(t, "management", r.String("fee_type", ""))
}

func TestFeeRatio(t *testing.T) {
	ratio, class := FeeRatio(100, 0)
	assert.True(t, math.IsInf(ratio, 1))
	assert.Equal(t, "infinite", class)

	ratio, class = FeeRatio(100, -50)
	assert.Equal(t, 2.0, ratio)
	assert.Equal(t, "negative_returns", class)

	ratio, class = FeeRatio(100, 50)
	assert.Equal(t, 2.0, ratio)
	assert.Equal(t, "calculated", class)
}

func TestComputeFeeRatio_ZeroReturns(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.ComputeFeeRatio(context.Background(), 157e6, 0)
	require.NoError(t, err)
	assert.Equal(t, "infinity", r.String("ratio", ""))
	assert.True(t, r.Bool("excessive"))
}

func TestFlagExcessive(t *testing.T) {
	tests := []struct {
		name      string
		ratio     float64
		severity  string
		anomalies int
	}{
		{"low", 5, "low", 0},
		{"medium", 20, "medium", 1},
		{"high", 60, "high", 1},
		{"critical", 150, "critical", 1},
		{"infinite", math.Inf(1), "critical", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sink := newModule(t)
			r, err := m.FlagExcessive(context.Background(), tt.ratio, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.severity, r.String("severity", ""))
			assert.Equal(t, tt.anomalies+1, sink.Len())
			if tt.anomalies > 0 {
				assert.Equal(t, "alert", sink.Receipts()[0].String("action", ""))
			}
		})
	}
}

func TestFlagExcessive_InfiniteDelta(t *testing.T) {
	m, sink := newModule(t)
	_, err := m.FlagExcessive(context.Background(), math.Inf(1), 10)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sink.Receipts()[0].Number("delta"))
}

func TestComputeReturnsAndBenchmark(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()
	in := Returns{InvestmentID: "inv-1", InitialValue: 100, CurrentValue: 90, Distributions: 0}

	r, err := m.ComputeReturns(ctx, in)
	require.NoError(t, err)
	assert.InDelta(t, -10.0, r.Number("return_percentage"), 1e-9)
	assert.False(t, r.Bool("is_zero_return"))

	r, err = m.CompareToBenchmark(ctx, in, "S&P 500", 15)
	require.NoError(t, err)
	assert.InDelta(t, -25.0, r.Number("alpha"), 1e-9)
	assert.True(t, r.Bool("significant_underperformance"))

	r, err = m.ComputeReturns(ctx, Returns{InitialValue: 100, CurrentValue: 100})
	require.NoError(t, err)
	assert.True(t, r.Bool("is_zero_return"))
}

func TestVerifyReportedVsActual(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.VerifyReportedVsActual(context.Background(),
		map[string]float64{"irr": 12, "fees": 5},
		map[string]float64{"irr": 0, "fees": 5.001},
	)
	require.NoError(t, err)
	assert.False(t, r.Bool("match"))
	assert.Equal(t, 1.0, r.Number("discrepancy_count"))
	d := r.Object("discrepancies")["irr"].(map[string]any)
	assert.Equal(t, "infinity", d["percentage_difference"])
}

func TestAssessFARARequirement(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.AssessFARARequirement(context.Background(),
		Entity{ID: "e1", Name: "Affinity", PublicRelations: true},
		[]ForeignPayment{{Source: "PIF", Amount: 5e4, IsGovernment: true}, {Amount: 10}},
	)
	require.NoError(t, err)
	assert.True(t, r.Bool("requires_registration"))
	assert.False(t, r.Bool("eight_figure_threshold"))
	assert.Equal(t, []any{"PIF", "unknown"}, r.Slice("payment_sources"))
}

func TestCheckRegistration_NullDate(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.CheckRegistration(context.Background(), "e1", false, "")
	require.NoError(t, err)
	v, ok := r.Get("registration_date")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestFlagViolation(t *testing.T) {
	m, sink := newModule(t)
	r, err := m.FlagViolation(context.Background(), "e1", ViolationEvidence{GovernmentPayments: 2e7})
	require.NoError(t, err)
	assert.Equal(t, "critical", r.String("severity", ""))
	assert.Equal(t, "unregistered", r.String("registration_status", ""))
	assert.Equal(t, receipts.AnomalyType, sink.Receipts()[0].Type)
}
