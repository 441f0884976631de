// Package golf scores payments to golf properties, LIV events, sanctions
// screening and emoluments.
package golf

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const (
	// CREWDocumentedBaseline is the documented foreign payment total.
	CREWDocumentedBaseline = 7800000.0
	// TopCountries bounds the country ranking in AggregateByCountry.
	TopCountries = 10
)

// Module holds the emitter and constants shared by the golf functions.
type Module struct {
	emitter    *receipts.Emitter
	exposure   config.Exposure
	thresholds config.Thresholds
}

// New creates the golf module.
func New(e *receipts.Emitter, cfg *config.Config) *Module {
	return &Module{emitter: e, exposure: cfg.Exposure, thresholds: cfg.Thresholds}
}

// Source is the origin of a payment.
type Source struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Country      string `json:"country"`
	Type         string `json:"type,omitempty"`
	Date         string `json:"date,omitempty"`
	Verified     bool   `json:"verified,omitempty"`
	IsGovernment bool   `json:"is_government,omitempty"`
	IsSWF        bool   `json:"is_swf,omitempty"`
	IsStateOwned bool   `json:"is_state_owned,omitempty"`
	IsSovereign  bool   `json:"is_sovereign,omitempty"`
}

// Domestic reports whether the source is in the United States.
func (s Source) Domestic() bool { return isDomestic(s.Country) }

func isDomestic(country string) bool {
	switch strings.ToLower(country) {
	case "us", "usa", "united states":
		return true
	}
	return false
}

// PaymentRecipient is the property receiving a payment.
type PaymentRecipient struct {
	Name     string `json:"name"`
	Property string `json:"property"`
}

// Payment is a payment to a golf property.
type Payment struct {
	ID                string  `json:"id,omitempty"`
	Amount            float64 `json:"amount"`
	Source            Source  `json:"source"`
	RecipientProperty string  `json:"recipient_property,omitempty"`
}

// RegisterPayment emits payment keyed by a hash of its parties and amount.
func (m *Module) RegisterPayment(ctx context.Context, src Source, rcpt PaymentRecipient, amount float64) (*receipts.Receipt, error) {
	h, err := m.emitter.Hasher().Hash(map[string]any{"source": src, "recipient": rcpt, "amount": amount})
	if err != nil {
		return nil, fmt.Errorf("golf: hash payment: %w", err)
	}
	return m.emitter.Emit(ctx, "payment", map[string]any{
		"payment_id":         h[:16],
		"source_name":        orDefault(src.Name, "unknown"),
		"source_country":     orDefault(src.Country, "unknown"),
		"source_type":        orDefault(src.Type, "unknown"),
		"recipient_name":     orDefault(rcpt.Name, "unknown"),
		"recipient_property": orDefault(rcpt.Property, "unknown"),
		"amount":             amount,
		"payment_date":       orDefault(src.Date, "unknown"),
		"verified":           src.Verified,
	})
}

// EntityType classifies the kind of entity behind a source.
func EntityType(s Source) string {
	t := strings.ToLower(s.Type)
	switch {
	case strings.Contains(t, "government") || s.IsGovernment:
		return "government"
	case strings.Contains(t, "sovereign") || strings.Contains(t, "swf") || s.IsSWF:
		return "sovereign_wealth_fund"
	case s.IsStateOwned:
		return "state_owned_enterprise"
	default:
		return "private"
	}
}

// ClassifySource emits source_classification. Foreign state-linked
// sources raise an emoluments concern.
func (m *Module) ClassifySource(ctx context.Context, src Source) (*receipts.Receipt, error) {
	id := src.ID
	if id == "" {
		h, err := m.emitter.Hasher().Hash(src)
		if err != nil {
			return nil, fmt.Errorf("golf: hash source: %w", err)
		}
		id = h[:12]
	}
	location := "foreign"
	if src.Domestic() {
		location = "domestic"
	}
	entityType := EntityType(src)
	return m.emitter.Emit(ctx, "source_classification", map[string]any{
		"source_id":               id,
		"source_name":             orDefault(src.Name, "unknown"),
		"country":                 orDefault(src.Country, "unknown"),
		"location_classification": location,
		"entity_type":             entityType,
		"emoluments_concern":      location == "foreign" && entityType != "private",
	})
}

// CountryTotal is the payment total from one country.
type CountryTotal struct {
	Country string  `json:"country,omitempty"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
}

// AggregateByCountry emits country_aggregate with the top countries by
// amount. Ties rank alphabetically.
func (m *Module) AggregateByCountry(ctx context.Context, payments []Payment) (*receipts.Receipt, error) {
	byCountry := map[string]*CountryTotal{}
	byType := map[string]float64{"domestic": 0, "foreign": 0, "government": 0, "swf": 0}
	total := 0.0
	for _, p := range payments {
		country := orDefault(p.Source.Country, "unknown")
		ct, ok := byCountry[country]
		if !ok {
			ct = &CountryTotal{Country: country}
			byCountry[country] = ct
		}
		ct.Total += p.Amount
		ct.Count++
		total += p.Amount

		if isDomestic(country) {
			byType["domestic"] += p.Amount
		} else {
			byType["foreign"] += p.Amount
		}
		t := strings.ToLower(p.Source.Type)
		if strings.Contains(t, "government") {
			byType["government"] += p.Amount
		}
		if strings.Contains(t, "swf") || strings.Contains(t, "sovereign") {
			byType["swf"] += p.Amount
		}
	}

	ranked := make([]CountryTotal, 0, len(byCountry))
	summary := make(map[string]CountryTotal, len(byCountry))
	for c, ct := range byCountry {
		ranked = append(ranked, *ct)
		summary[c] = CountryTotal{Total: ct.Total, Count: ct.Count}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].Country < ranked[j].Country
	})
	if len(ranked) > TopCountries {
		ranked = ranked[:TopCountries]
	}

	return m.emitter.Emit(ctx, "country_aggregate", map[string]any{
		"total_payments":           len(payments),
		"total_amount":             total,
		"countries_count":          len(byCountry),
		"by_country":               summary,
		"by_type":                  byType,
		"top_countries":            ranked,
		"foreign_government_total": byType["government"],
		"crew_documented_baseline": CREWDocumentedBaseline,
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
