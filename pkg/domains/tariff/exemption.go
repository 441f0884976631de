package tariff

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// ExemptionApplication is a tariff exemption request.
type ExemptionApplication struct {
	Applicant       string  `json:"applicant"`
	Product         string  `json:"product"`
	HTSCode         string  `json:"hts_code"`
	AmountRequested float64 `json:"amount_requested"`
	Justification   string  `json:"justification"`
}

// RegisterExemption emits exemption_application.
func (m *Module) RegisterExemption(ctx context.Context, app ExemptionApplication) (*receipts.Receipt, error) {
	appHash, err := m.emitter.Hasher().Hash(app)
	if err != nil {
		return nil, fmt.Errorf("tariff: hash application: %w", err)
	}
	return m.emitter.Emit(ctx, "exemption_application", map[string]any{
		"applicant":        orDefault(app.Applicant, "unknown"),
		"product":          orDefault(app.Product, "unknown"),
		"hts_code":         app.HTSCode,
		"amount_requested": app.AmountRequested,
		"justification":    app.Justification,
		"application_hash": appHash,
	})
}

// TrackApproval emits exemption_outcome. A rationale longer than ten
// characters counts as documented criteria.
func (m *Module) TrackApproval(ctx context.Context, exemptionID, outcome, rationale, lobbyingCrossRef string) (*receipts.Receipt, error) {
	return m.emitter.Emit(ctx, "exemption_outcome", map[string]any{
		"exemption_id":            exemptionID,
		"outcome":                 outcome,
		"rationale":               rationale,
		"lobbying_cross_ref":      lobbyingCrossRef,
		"has_documented_criteria": len(rationale) > 10,
	})
}

// Outcome is a decided exemption.
type Outcome struct {
	ID        string `json:"id,omitempty"`
	Applicant string `json:"applicant"`
	Outcome   string `json:"outcome"`
}

// DetectFavoritism compares approval rates of lobbying and non-lobbying
// applicants. A deviation above the favoritism threshold is flagged.
func (m *Module) DetectFavoritism(ctx context.Context, outcomes []Outcome, lobbying []LDAFiling) (*receipts.Receipt, error) {
	clients := map[string]struct{}{}
	for _, f := range lobbying {
		if f.Client != "" {
			clients[strings.ToLower(f.Client)] = struct{}{}
		}
	}

	var approved, approvedLobby, approvedOther, deniedLobby, deniedOther int
	for _, o := range outcomes {
		_, lobbied := clients[strings.ToLower(o.Applicant)]
		switch {
		case o.Outcome == "approved" && lobbied:
			approved++
			approvedLobby++
		case o.Outcome == "approved":
			approved++
			approvedOther++
		case lobbied:
			deniedLobby++
		default:
			deniedOther++
		}
	}

	lobbyRate := ratio(approvedLobby, approvedLobby+deniedLobby)
	baseRate := ratio(approvedOther, approvedOther+deniedOther)
	deviation := math.Abs(lobbyRate - baseRate)

	connected := make([]string, 0, len(clients))
	for c := range clients {
		connected = append(connected, c)
	}
	sort.Strings(connected)

	return m.emitter.Emit(ctx, "favoritism_detection", map[string]any{
		"total_outcomes":         len(outcomes),
		"approved_count":         approved,
		"lobbying_approval_rate": lobbyRate,
		"baseline_approval_rate": baseRate,
		"deviation_score":        deviation,
		"threshold":              m.thresholds.Favoritism,
		"favoritism_detected":    deviation > m.thresholds.Favoritism,
		"connected_entities":     connected,
	})
}

// Exemption is a decided exemption with its process documentation.
type Exemption struct {
	ID              string `json:"id,omitempty"`
	Applicant       string `json:"applicant,omitempty"`
	Outcome         string `json:"outcome,omitempty"`
	Rationale       string `json:"rationale,omitempty"`
	Criteria        string `json:"criteria,omitempty"`
	PublicNotice    bool   `json:"public_notice,omitempty"`
	SameDayDecision bool   `json:"same_day_decision,omitempty"`
	DecisionDate    string `json:"decision_date,omitempty"`
}

// OpacityFactors counts missing process documentation on e, out of four.
func OpacityFactors(e Exemption) int {
	n := 0
	if e.Rationale == "" {
		n++
	}
	if e.Criteria == "" {
		n++
	}
	if !e.PublicNotice {
		n++
	}
	if e.SameDayDecision || e.DecisionDate == "" {
		n++
	}
	return n
}

// ScoreOpacity scores how undocumented the exemption process is, from 0 to
// 1. No data at all is maximally opaque.
func (m *Module) ScoreOpacity(ctx context.Context, exemptions []Exemption) (*receipts.Receipt, error) {
	if len(exemptions) == 0 {
		return m.emitter.Emit(ctx, "opacity", map[string]any{
			"opacity_score":  1.0,
			"classification": "critical",
			"message":        "No exemption data available - maximum opacity",
		})
	}

	factors := 0
	for _, e := range exemptions {
		factors += OpacityFactors(e)
	}
	total := 4 * len(exemptions)
	score := float64(factors) / float64(total)

	return m.emitter.Emit(ctx, "opacity", map[string]any{
		"exemptions_analyzed": len(exemptions),
		"opacity_factors":     factors,
		"total_factors":       total,
		"opacity_score":       score,
		"threshold_critical":  m.thresholds.OpacityCritical,
		"classification":      m.classifyOpacity(score),
	})
}

func (m *Module) classifyOpacity(score float64) string {
	switch {
	case score >= m.thresholds.OpacityCritical:
		return "critical"
	case score >= 0.6:
		return "high"
	case score >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
