package border

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// MajorDonorThreshold is the total donations above which a contractor is a
// major donor.
const MajorDonorThreshold = 100000.0

// Donation is a political donation.
type Donation struct {
	Donor     string  `json:"donor,omitempty"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

func (d Donation) trumpRelated() bool {
	return strings.Contains(strings.ToLower(d.Recipient), "trump")
}

// Contractor is a detention contractor.
type Contractor struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Type      string     `json:"type,omitempty"`
	Donations []Donation `json:"donations,omitempty"`
}

// RegisterContractor emits contractor_registration. A contractor without
// an ID is keyed by a hash of the record.
func (m *Module) RegisterContractor(ctx context.Context, c Contractor) (*receipts.Receipt, error) {
	id := c.ID
	if id == "" {
		h, err := m.emitter.Hasher().Hash(c)
		if err != nil {
			return nil, fmt.Errorf("border: hash contractor: %w", err)
		}
		id = h[:12]
	}
	var total, trump float64
	for _, d := range c.Donations {
		total += d.Amount
		if d.trumpRelated() {
			trump += d.Amount
		}
	}
	donations := c.Donations
	if donations == nil {
		donations = []Donation{}
	}
	return m.emitter.Emit(ctx, "contractor_registration", map[string]any{
		"contractor_id":          id,
		"contractor_name":        orDefault(c.Name, "unknown"),
		"contractor_type":        orDefault(c.Type, "unknown"),
		"total_donations":        total,
		"trump_entity_donations": trump,
		"donation_history":       donations,
		"is_major_donor":         total > MajorDonorThreshold,
	})
}

// Contract is a detention services contract.
type Contract struct {
	ID                string  `json:"id,omitempty"`
	ContractorName    string  `json:"contractor_name,omitempty"`
	Value             float64 `json:"value"`
	StartDate         string  `json:"start_date,omitempty"`
	EndDate           string  `json:"end_date,omitempty"`
	FacilityCount     int     `json:"facility_count,omitempty"`
	BedCapacity       int     `json:"bed_capacity,omitempty"`
	PerformanceRating string  `json:"performance_rating,omitempty"`
	Violations        int     `json:"violations,omitempty"`
	Deaths            int     `json:"deaths,omitempty"`
}

// TrackContract emits contract_tracking.
func (m *Module) TrackContract(ctx context.Context, contractorID string, c Contract) (*receipts.Receipt, error) {
	return m.emitter.Emit(ctx, "contract_tracking", map[string]any{
		"contractor_id":              contractorID,
		"contract_id":                orDefault(c.ID, "unknown"),
		"contract_value":             c.Value,
		"start_date":                 orDefault(c.StartDate, "unknown"),
		"end_date":                   orDefault(c.EndDate, "unknown"),
		"facility_count":             c.FacilityCount,
		"bed_capacity":               c.BedCapacity,
		"performance_rating":         orDefault(c.PerformanceRating, "unknown"),
		"violations_during_contract": c.Violations,
		"deaths_during_contract":     c.Deaths,
	})
}

// Outcomes are what a contractor delivered for its cost.
type Outcomes struct {
	TotalCost          float64
	Deportations       int
	DetentionDays      int
	Deaths             int
	WrongfulDetentions int
}

// ComputeCostPerOutcome emits contractor_outcome.
func (m *Module) ComputeCostPerOutcome(ctx context.Context, contractorID string, o Outcomes) (*receipts.Receipt, error) {
	per := func(n int) float64 {
		if n <= 0 {
			return 0
		}
		return o.TotalCost / float64(n)
	}
	return m.emitter.Emit(ctx, "contractor_outcome", map[string]any{
		"contractor_id":          contractorID,
		"total_cost":             o.TotalCost,
		"deportations":           o.Deportations,
		"detention_days":         o.DetentionDays,
		"cost_per_deportation":   per(o.Deportations),
		"cost_per_detention_day": per(o.DetentionDays),
		"deaths":                 o.Deaths,
		"cost_per_death":         per(o.Deaths),
		"wrongful_detentions":    o.WrongfulDetentions,
	})
}

// Correlation links a contract to donations by its contractor.
type Correlation struct {
	Contractor              string  `json:"contractor"`
	ContractValue           float64 `json:"contract_value"`
	TotalDonations          float64 `json:"total_donations"`
	TrumpRelatedDonations   float64 `json:"trump_related_donations"`
	DonationToContractRatio float64 `json:"donation_to_contract_ratio"`
}

// CrossReferenceDonations matches contractors to donors by lower-cased name.
// Correlated donations above one million dollars are high risk.
func (m *Module) CrossReferenceDonations(ctx context.Context, contracts []Contract, donations []Donation) (*receipts.Receipt, error) {
	type donorTotals struct{ total, trump float64 }
	donors := map[string]*donorTotals{}
	for _, d := range donations {
		donor := strings.ToLower(d.Donor)
		if donor == "" {
			continue
		}
		t, ok := donors[donor]
		if !ok {
			t = &donorTotals{}
			donors[donor] = t
		}
		t.total += d.Amount
		if d.trumpRelated() {
			t.trump += d.Amount
		}
	}

	correlations := []Correlation{}
	var contractValue, donated float64
	for _, c := range contracts {
		name := strings.ToLower(c.ContractorName)
		t, ok := donors[name]
		if !ok {
			continue
		}
		ratio := 0.0
		if c.Value > 0 {
			ratio = t.total / c.Value
		}
		correlations = append(correlations, Correlation{
			Contractor:              name,
			ContractValue:           c.Value,
			TotalDonations:          t.total,
			TrumpRelatedDonations:   t.trump,
			DonationToContractRatio: ratio,
		})
		contractValue += c.Value
		donated += t.total
	}

	risk := "low"
	switch {
	case len(correlations) > 0 && donated > 1000000:
		risk = "high"
	case len(correlations) > 0:
		risk = "medium"
	}

	return m.emitter.Emit(ctx, "donation_contract_cross_ref", map[string]any{
		"contracts_analyzed":              len(contracts),
		"donations_analyzed":              len(donations),
		"correlations_found":              len(correlations),
		"correlations":                    correlations,
		"total_correlated_contract_value": contractValue,
		"total_correlated_donations":      donated,
		"corruption_risk":                 risk,
	})
}
