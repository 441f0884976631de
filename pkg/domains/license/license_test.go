package license

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/domain"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

func newModule(t *testing.T) (*Module, *receipts.MemorySink) {
	t.Helper()
	sink := receipts.NewMemorySink()
	return New(receipts.NewEmitter(sink), config.Default()), sink
}

func TestChain(t *testing.T) {
	e := &Entity{Name: "Trump Tower Jeddah LLC", Type: "llc", Parent: &Entity{
		Name: "DTTM Holdings", Type: "llc", OwnershipPercentage: 60, Parent: &Entity{
			Name: "Donald J. Trump", Type: "individual",
		},
	}}
	chain, resolved := Chain(e, 5)
	require.Len(t, chain, 3)
	assert.Equal(t, 2, resolved)
	assert.Equal(t, 100.0, chain[0].OwnershipPercentage)
	assert.Equal(t, 60.0, chain[1].OwnershipPercentage)

	chain, resolved = Chain(e, 2)
	assert.Len(t, chain, 2)
	assert.Equal(t, 2, resolved)
}

func TestResolveOwnership(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.ResolveOwnership(context.Background(), &Entity{
		Name:   "Opaque LLC",
		Parent: &Entity{Name: "Holding", Type: "individual"},
	}, 0)
	require.NoError(t, err)
	assert.True(t, r.Bool("owner_identified"))
	assert.Equal(t, float64(DefaultResolutionDepth), r.Number("max_depth"))
	assert.Equal(t, "Holding", r.Object("ultimate_owner")["entity_name"])
	assert.Len(t, r.String("entity_id", ""), 12)
}

func TestTrackShellCompany(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackShellCompany(context.Background(), &Entity{ID: "e1", RegisteredAgentOnly: true}, "Delaware")
	require.NoError(t, err)
	assert.Equal(t, 4.0, r.Number("indicator_count"))
	assert.InDelta(t, 0.8, r.Number("shell_score"), 1e-9)
	assert.True(t, r.Bool("likely_shell"))

	r, err = m.TrackShellCompany(context.Background(), &Entity{ID: "e2", Employees: 40, PhysicalOperations: true}, "New York")
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Number("shell_score"))
	assert.False(t, r.Bool("likely_shell"))
}

func TestFlagOpacity(t *testing.T) {
	tests := []struct {
		layers   int
		severity string
	}{
		{0, "low"},
		{2, "medium"},
		{3, "high"},
		{4, "critical"},
		{9, "critical"},
	}
	for _, tt := range tests {
		m, _ := newModule(t)
		r, err := m.FlagOpacity(context.Background(), "e1", tt.layers)
		require.NoError(t, err)
		assert.Equal(t, tt.severity, r.String("severity", ""), "layers=%d", tt.layers)
		assert.LessOrEqual(t, r.Number("opacity_score"), 1.0)
	}
}

func TestRegisterLicense_DeterministicID(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()
	a, err := m.RegisterLicense(ctx, Party{Name: "Trump Org"}, Party{Name: "Dar Global", Country: "Saudi Arabia"}, Terms{ProjectValue: 5.33e8})
	require.NoError(t, err)
	b, err := m.RegisterLicense(ctx, Party{Name: "Trump Org"}, Party{Name: "Dar Global", Country: "Saudi Arabia"}, Terms{})
	require.NoError(t, err)
	assert.Equal(t, a.String("license_id", ""), b.String("license_id", ""))
	assert.Equal(t, "unknown", a.String("project_name", ""))
}

func TestTrackFeePayment_ClassifiedAsLicense(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackFeePayment(context.Background(), "lic-1", FeePayment{Amount: 1e6, IsForeign: true})
	require.NoError(t, err)
	assert.True(t, r.Bool("is_foreign"))
	assert.Equal(t, domain.License, domain.Infer(r.Type))
}

func TestVerifyDisclosure(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.VerifyDisclosure(context.Background(), "lic-1", map[string]any{
		"project_value":             1,
		"fee_percentage":            2,
		"licensee_beneficial_owner": "x",
		"source_of_funds":           nil,
		"government_involvement":    false,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.8, r.Number("disclosure_rate"))
	assert.True(t, r.Bool("adequate_disclosure"))
	assert.Equal(t, []any{"source_of_funds"}, r.Slice("missing_fields"))
}

func TestRegisterPartner(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.RegisterPartner(context.Background(), Partner{
		ID:       "dar",
		Name:     "Dar Global",
		Projects: []Project{{Name: "Jeddah", Value: 5e8}, {Name: "Muscat", Value: 2e8}},
	}, "Saudi Arabia")
	require.NoError(t, err)
	assert.Equal(t, 7e8, r.Number("total_project_value"))
	v, ok := r.Get("parent_company")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestAssessGovernmentTies(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.AssessGovernmentTies(context.Background(), "p1", Partner{StateOwned: true, SWFInvestment: true})
	require.NoError(t, err)
	assert.Equal(t, "high", r.String("risk_level", ""))
	assert.Equal(t, 2.0, r.Number("tie_count"))
}

func TestCrossReferencePIF(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.CrossReferencePIF(context.Background(), Partner{
		Name:           "Dar Global",
		Country:        "Saudi Arabia",
		ParentCompany:  "Dar Al Arkan",
		GovernmentTies: true,
	})
	require.NoError(t, err)
	assert.True(t, r.Bool("is_pif_connected"))
	assert.Equal(t, 2.0, r.Number("pif_connection_count"))
	assert.Equal(t, domain.License, domain.Infer(r.Type))

	cfg := config.Default()
	assert.Equal(t, cfg.Exposure.GulfPIFInvestment+cfg.Exposure.GolfLIVPIFInvestment, r.Number("pif_total_documented"))
}
