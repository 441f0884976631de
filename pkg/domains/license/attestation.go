package license

import (
	"context"
	"fmt"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// AdequateDisclosureRate is the share of required fields that makes a
// disclosure adequate.
const AdequateDisclosureRate = 0.8

// RequiredDisclosures are the fields a licensing deal must disclose.
var RequiredDisclosures = []string{
	"project_value",
	"fee_percentage",
	"licensee_beneficial_owner",
	"source_of_funds",
	"government_involvement",
}

// Party is a licensor or licensee.
type Party struct {
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// Terms of a license.
type Terms struct {
	ProjectName        string  `json:"project_name,omitempty"`
	ProjectValue       float64 `json:"project_value,omitempty"`
	FeePercentage      float64 `json:"fee_percentage,omitempty"`
	EstimatedAnnualFee float64 `json:"estimated_annual_fee,omitempty"`
	TermYears          int     `json:"term_years,omitempty"`
	StartDate          string  `json:"start_date,omitempty"`
}

// RegisterLicense emits license_registration keyed by a hash of both
// parties.
func (m *Module) RegisterLicense(ctx context.Context, licensor, licensee Party, terms Terms) (*receipts.Receipt, error) {
	h, err := m.emitter.Hasher().Hash(map[string]any{"licensor": licensor, "licensee": licensee})
	if err != nil {
		return nil, fmt.Errorf("license: hash parties: %w", err)
	}
	return m.emitter.Emit(ctx, "license_registration", map[string]any{
		"license_id":             h[:16],
		"licensor_name":          orDefault(licensor.Name, "unknown"),
		"licensee_name":          orDefault(licensee.Name, "unknown"),
		"licensee_country":       orDefault(licensee.Country, "unknown"),
		"project_name":           orDefault(terms.ProjectName, "unknown"),
		"project_value":          terms.ProjectValue,
		"license_fee_percentage": terms.FeePercentage,
		"estimated_annual_fee":   terms.EstimatedAnnualFee,
		"term_years":             terms.TermYears,
		"start_date":             orDefault(terms.StartDate, "unknown"),
	})
}

// FeePayment is a license fee payment.
type FeePayment struct {
	Amount        float64
	Date          string
	Method        string
	Source        string
	SourceCountry string
	IsForeign     bool
	Verified      bool
}

// TrackFeePayment emits license_fee_payment.
func (m *Module) TrackFeePayment(ctx context.Context, licenseID string, p FeePayment) (*receipts.Receipt, error) {
	return m.emitter.Emit(ctx, "license_fee_payment", map[string]any{
		"license_id":     licenseID,
		"payment_amount": p.Amount,
		"payment_date":   orDefault(p.Date, "unknown"),
		"payment_method": orDefault(p.Method, "unknown"),
		"source_entity":  orDefault(p.Source, "unknown"),
		"source_country": orDefault(p.SourceCountry, "unknown"),
		"is_foreign":     p.IsForeign,
		"verified":       p.Verified,
	})
}

// VerifyDisclosure checks which required fields were disclosed. A field
// present with a null value counts as missing.
func (m *Module) VerifyDisclosure(ctx context.Context, licenseID string, disclosed map[string]any) (*receipts.Receipt, error) {
	present := []string{}
	missing := []string{}
	for _, f := range RequiredDisclosures {
		if v, ok := disclosed[f]; ok && v != nil {
			present = append(present, f)
		} else {
			missing = append(missing, f)
		}
	}
	rate := float64(len(present)) / float64(len(RequiredDisclosures))
	return m.emitter.Emit(ctx, "license_disclosure_verification", map[string]any{
		"license_id":              licenseID,
		"disclosed_fields":        present,
		"missing_fields":          missing,
		"disclosure_rate":         rate,
		"adequate_disclosure":     rate >= AdequateDisclosureRate,
		"annual_revenue_baseline": m.exposure.LicenseAnnualRevenue,
	})
}
