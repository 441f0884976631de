package golf

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

var highRiskCountries = map[string]bool{
	"russia":      true,
	"iran":        true,
	"north korea": true,
	"syria":       true,
	"cuba":        true,
}

// SDNEntry is an OFAC Specially Designated Nationals list entry.
type SDNEntry struct {
	ID      string
	Name    string
	Country string
}

// Party is an entity screened against the SDN list.
type Party struct {
	ID      string
	Name    string
	Country string
}

// SDNMatch is a screening hit.
type SDNMatch struct {
	SDNID      string  `json:"sdn_id"`
	SDNName    string  `json:"sdn_name"`
	MatchType  string  `json:"match_type"`
	Confidence float64 `json:"confidence"`
}

// Screen matches p against the list. An exact name is a certain match; a
// shared high-risk country is a weak one.
func Screen(p Party, sdn []SDNEntry) []SDNMatch {
	name := strings.ToLower(p.Name)
	country := strings.ToLower(p.Country)
	matches := []SDNMatch{}
	for _, e := range sdn {
		switch {
		case name == strings.ToLower(e.Name):
			matches = append(matches, SDNMatch{SDNID: e.ID, SDNName: e.Name, MatchType: "exact_name", Confidence: 1.0})
		case country == strings.ToLower(e.Country) && highRiskCountries[country]:
			matches = append(matches, SDNMatch{SDNID: e.ID, SDNName: e.Name, MatchType: "high_risk_country", Confidence: 0.5})
		}
	}
	return matches
}

// ScreenEntity emits sanctions_screening.
func (m *Module) ScreenEntity(ctx context.Context, p Party, sdn []SDNEntry) (*receipts.Receipt, error) {
	matches := Screen(p, sdn)
	return m.emitter.Emit(ctx, "sanctions_screening", map[string]any{
		"entity_id":           orDefault(p.ID, "unknown"),
		"entity_name":         orDefault(p.Name, "unknown"),
		"entity_country":      orDefault(p.Country, "unknown"),
		"sdn_entries_checked": len(sdn),
		"matches_found":       len(matches),
		"matches":             matches,
		"cleared":             len(matches) == 0,
		"requires_review":     len(matches) > 0,
	})
}

// Transaction is a transfer between two parties.
type Transaction struct {
	ID        string
	Amount    float64
	Sender    Party
	Recipient Party
}

// ScreenTransaction screens both parties and emits one
// transaction_screening receipt. Any match blocks the transaction.
func (m *Module) ScreenTransaction(ctx context.Context, tx Transaction, sdn []SDNEntry) (*receipts.Receipt, error) {
	sender := Screen(tx.Sender, sdn)
	recipient := Screen(tx.Recipient, sdn)
	return m.emitter.Emit(ctx, "transaction_screening", map[string]any{
		"transaction_id":    orDefault(tx.ID, "unknown"),
		"amount":            tx.Amount,
		"sender_cleared":    len(sender) == 0,
		"recipient_cleared": len(recipient) == 0,
		"blocked":           len(sender) > 0 || len(recipient) > 0,
		"sender_matches":    sender,
		"recipient_matches": recipient,
	})
}

// FlagMatch records an SDN hit. A halting anomaly is emitted before the
// flag; high-confidence matches are blocked.
func (m *Module) FlagMatch(ctx context.Context, entityID string, match SDNMatch) (*receipts.Receipt, error) {
	if _, err := m.emitter.EmitAnomaly(ctx, receipts.Anomaly{
		Metric:         "sdn_match",
		Delta:          1,
		Classification: receipts.ClassViolation,
		Action:         receipts.ActionHalt,
	}); err != nil {
		return nil, fmt.Errorf("golf: sdn anomaly: %w", err)
	}

	severity := "low"
	switch {
	case match.Confidence >= 0.9:
		severity = "critical"
	case match.Confidence >= 0.7:
		severity = "high"
	case match.Confidence >= 0.5:
		severity = "medium"
	}
	blocked := severity == "critical" || severity == "high"
	action := "REVIEW"
	if blocked {
		action = "IMMEDIATE_REVIEW"
	}
	return m.emitter.Emit(ctx, "sdn_flag", map[string]any{
		"entity_id":       entityID,
		"sdn_id":          orDefault(match.SDNID, "unknown"),
		"sdn_name":        orDefault(match.SDNName, "unknown"),
		"match_type":      orDefault(match.MatchType, "unknown"),
		"confidence":      match.Confidence,
		"severity":        severity,
		"action_required": action,
		"blocked":         blocked,
	})
}
