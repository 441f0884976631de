package golf

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

func TestRegisterPayment_DeterministicID(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()
	src := Source{Name: "Embassy", Country: "Qatar"}
	rcpt := PaymentRecipient{Name: "Trump Org", Property: "Doral"}

	a, err := m.RegisterPayment(ctx, src, rcpt, 5000)
	require.NoError(t, err)
	b, err := m.RegisterPayment(ctx, src, rcpt, 5000)
	require.NoError(t, err)
	assert.Len(t, a.String("payment_id", ""), 16)
	assert.Equal(t, a.String("payment_id", ""), b.String("payment_id", ""))
	assert.Equal(t, "unknown", a.String("source_type", ""))
}

func TestEntityType(t *testing.T) {
	tests := []struct {
		src  Source
		want string
	}{
		{Source{Type: "Foreign Government"}, "government"},
		{Source{IsGovernment: true}, "government"},
		{Source{Type: "SWF"}, "sovereign_wealth_fund"},
		{Source{IsStateOwned: true}, "state_owned_enterprise"},
		{Source{Type: "corporate"}, "private"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EntityType(tt.src), "%+v", tt.src)
	}
}

func TestClassifySource(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.ClassifySource(context.Background(), Source{ID: "s1", Country: "Saudi Arabia", IsSWF: true})
	require.NoError(t, err)
	assert.Equal(t, "foreign", r.String("location_classification", ""))
	assert.True(t, r.Bool("emoluments_concern"))

	r, err = m.ClassifySource(context.Background(), Source{Country: "USA", IsGovernment: true})
	require.NoError(t, err)
	assert.Equal(t, "domestic", r.String("location_classification", ""))
	assert.False(t, r.Bool("emoluments_concern"))
	assert.Len(t, r.String("source_id", ""), 12)
}

func TestAggregateByCountry(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.AggregateByCountry(context.Background(), []Payment{
		{Amount: 100, Source: Source{Country: "China", Type: "government"}},
		{Amount: 300, Source: Source{Country: "Saudi Arabia", Type: "sovereign fund"}},
		{Amount: 50, Source: Source{Country: "US"}},
		{Amount: 100, Source: Source{Country: "Angola"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 550.0, r.Number("total_amount"))
	assert.Equal(t, 4.0, r.Number("countries_count"))
	byType := r.Object("by_type")
	assert.Equal(t, 50.0, byType["domestic"])
	assert.Equal(t, 500.0, byType["foreign"])
	assert.Equal(t, 300.0, byType["swf"])
	assert.Equal(t, 100.0, r.Number("foreign_government_total"))

	top := r.Slice("top_countries")
	require.Len(t, top, 4)
	assert.Equal(t, "Saudi Arabia", top[0].(map[string]any)["country"])
	assert.Equal(t, "Angola", top[1].(map[string]any)["country"])
	assert.Equal(t, "China", top[2].(map[string]any)["country"])
}

func TestTrackLIVEvent(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackLIVEvent(context.Background(), Event{
		ID:    "liv-1",
		Name:  "LIV Bedminster",
		Purse: 1000,
		Venue: Venue{Name: "Bedminster", IsTrumpProperty: true},
	}, 25e6)
	require.NoError(t, err)
	assert.Equal(t, 93.0, r.Number("pif_ownership_percentage"))
	assert.InDelta(t, 930.0, r.Number("pif_portion_of_purse"), 1e-9)
	assert.True(t, r.Bool("is_trump_property"))
	assert.True(t, r.Bool("saudi_government_connection"))
}

func TestRegisterEventAndVenueRevenue(t *testing.T) {
	m, _ := newModule(t)
	ctx := context.Background()

	r, err := m.RegisterEvent(ctx, Event{Name: "Open"}, Venue{ID: "doral", Name: "Doral"})
	require.NoError(t, err)
	assert.Len(t, r.String("event_id", ""), 12)
	assert.Equal(t, "doral", r.String("venue_id", ""))

	r, err = m.ComputeVenueRevenue(ctx, "doral", "2025", []Event{
		{Type: "LIV", EstimatedRevenue: 300},
		{Type: "pga", EstimatedRevenue: 100},
		{Type: "charity", EstimatedRevenue: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, r.Number("liv_revenue_percentage"))
	assert.Equal(t, 1.0, r.Number("other_events"))
	assert.InDelta(t, 279.0, r.Number("pif_exposure"), 1e-9)
}

func TestScreen(t *testing.T) {
	sdn := []SDNEntry{
		{ID: "1", Name: "Bad Actor", Country: "Iran"},
		{ID: "2", Name: "Other", Country: "France"},
	}
	assert.Equal(t, "exact_name", Screen(Party{Name: "bad actor"}, sdn)[0].MatchType)

	m := Screen(Party{Name: "Someone", Country: "IRAN"}, sdn)
	require.Len(t, m, 1)
	assert.Equal(t, 0.5, m[0].Confidence)

	assert.Empty(t, Screen(Party{Name: "Someone", Country: "France"}, sdn))
}

func TestScreenTransaction_OneReceipt(t *testing.T) {
	m, sink := newModule(t)
	r, err := m.ScreenTransaction(context.Background(), Transaction{
		ID:        "tx1",
		Amount:    10,
		Sender:    Party{Name: "Bad Actor"},
		Recipient: Party{Name: "Clean Co"},
	}, []SDNEntry{{ID: "1", Name: "Bad Actor"}})
	require.NoError(t, err)
	assert.True(t, r.Bool("blocked"))
	assert.False(t, r.Bool("sender_cleared"))
	assert.True(t, r.Bool("recipient_cleared"))
	assert.Equal(t, 1, sink.Len())
}

func TestFlagMatch(t *testing.T) {
	m, sink := newModule(t)
	r, err := m.FlagMatch(context.Background(), "e1", SDNMatch{SDNID: "1", Confidence: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "medium", r.String("severity", ""))
	assert.False(t, r.Bool("blocked"))
	assert.Equal(t, "halt", sink.Receipts()[0].String("action", ""))

	r, err = m.FlagMatch(context.Background(), "e1", SDNMatch{Confidence: 1})
	require.NoError(t, err)
	assert.True(t, r.Bool("blocked"))
	assert.Equal(t, "IMMEDIATE_REVIEW", r.String("action_required", ""))
}

func TestAssessEmolument(t *testing.T) {
	m, sink := newModule(t)
	ctx := context.Background()

	r, err := m.AssessEmolument(ctx, Payment{ID: "p1", Amount: 50000, Source: Source{Country: "China", IsStateOwned: true}})
	require.NoError(t, err)
	assert.True(t, r.Bool("is_emolument"))
	require.Equal(t, 2, sink.Len())
	assert.Equal(t, 40000.0, sink.Receipts()[0].Number("delta"))

	r, err = m.AssessEmolument(ctx, Payment{Amount: 500, Source: Source{Country: "China", IsGovernment: true}})
	require.NoError(t, err)
	assert.True(t, r.Bool("is_emolument"))
	assert.False(t, r.Bool("exceeds_threshold"))
	assert.Equal(t, 3, sink.Len())
}

func TestTrackForeignGovernment(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.TrackForeignGovernment(context.Background(), []Payment{
		{Amount: 8000, Source: Source{Country: "China"}, RecipientProperty: "Tower"},
		{Amount: 4000, Source: Source{Name: "china"}, RecipientProperty: "Tower"},
		{Amount: 9999, Source: Source{Country: "Japan"}},
	}, "China")
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Number("payment_count"))
	assert.True(t, r.Bool("exceeds_disclosure_threshold"))
	tower := r.Object("by_property")["Tower"].(map[string]any)
	assert.Equal(t, 12000.0, tower["total"])
}

func TestComputeExposure(t *testing.T) {
	m, _ := newModule(t)
	r, err := m.ComputeExposure(context.Background(), []Payment{
		{Amount: 300, Source: Source{Country: "Qatar", IsSovereign: true}},
		{Amount: 100, Source: Source{Country: "Qatar", IsStateOwned: true}},
		{Amount: 100, Source: Source{Country: "US", IsGovernment: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Number("emolument_count"))
	assert.Equal(t, 60.0, r.Number("emoluments_percentage"))
}
