package tariff

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// LDAFiling is a Lobbying Disclosure Act filing.
type LDAFiling struct {
	Client   string   `json:"client"`
	Lobbyist string   `json:"lobbyist"`
	Amount   float64  `json:"amount"`
	Issues   []string `json:"issues,omitempty"`
}

// IngestLDAFilings emits lda_ingest summarizing the filings.
func (m *Module) IngestLDAFilings(ctx context.Context, filings []LDAFiling) (*receipts.Receipt, error) {
	dataHash, err := m.emitter.Hasher().Hash(filings)
	if err != nil {
		return nil, fmt.Errorf("tariff: hash filings: %w", err)
	}

	total := 0.0
	clients := map[string]struct{}{}
	lobbyists := map[string]struct{}{}
	issues := map[string]struct{}{}
	for _, f := range filings {
		total += f.Amount
		if f.Client != "" {
			clients[f.Client] = struct{}{}
		}
		if f.Lobbyist != "" {
			lobbyists[f.Lobbyist] = struct{}{}
		}
		for _, is := range f.Issues {
			if strings.Contains(strings.ToLower(is), "tariff") {
				issues[is] = struct{}{}
			}
		}
	}
	tariffIssues := make([]string, 0, len(issues))
	for is := range issues {
		tariffIssues = append(tariffIssues, is)
	}
	sort.Strings(tariffIssues)

	return m.emitter.Emit(ctx, "lda_ingest", map[string]any{
		"filing_count":          len(filings),
		"total_spend":           total,
		"unique_clients":        len(clients),
		"unique_lobbyists":      len(lobbyists),
		"tariff_related_issues": tariffIssues,
		"data_hash":             dataHash,
	})
}

// Match links an exemption to the lobbying done by its applicant.
type Match struct {
	ExemptionID        string   `json:"exemption_id"`
	Applicant          string   `json:"applicant"`
	Outcome            string   `json:"outcome"`
	Lobbyists          []string `json:"lobbyists"`
	TotalLobbyingSpend float64  `json:"total_lobbying_spend"`
}

// Matches pairs exemptions with filings whose client is the applicant,
// compared case-insensitively.
func Matches(exemptions []Exemption, filings []LDAFiling) []Match {
	lobbyists := map[string][]string{}
	spend := map[string]float64{}
	for _, f := range filings {
		client := strings.ToLower(f.Client)
		if client == "" {
			continue
		}
		lobbyists[client] = append(lobbyists[client], f.Lobbyist)
		spend[client] += f.Amount
	}

	var out []Match
	for _, ex := range exemptions {
		applicant := strings.ToLower(ex.Applicant)
		ls, ok := lobbyists[applicant]
		if !ok {
			continue
		}
		out = append(out, Match{
			ExemptionID:        orDefault(ex.ID, "unknown"),
			Applicant:          applicant,
			Outcome:            orDefault(ex.Outcome, "unknown"),
			Lobbyists:          ls,
			TotalLobbyingSpend: spend[applicant],
		})
	}
	return out
}

// CrossReference emits exemption_lobbying_cross_ref.
func (m *Module) CrossReference(ctx context.Context, exemptions []Exemption, filings []LDAFiling) (*receipts.Receipt, error) {
	matches := Matches(exemptions, filings)
	if matches == nil {
		matches = []Match{}
	}
	return m.emitter.Emit(ctx, "exemption_lobbying_cross_ref", map[string]any{
		"exemptions_analyzed":  len(exemptions),
		"lda_filings_analyzed": len(filings),
		"matches_found":        len(matches),
		"match_rate":           ratio(len(matches), len(exemptions)),
		"matches":              matches,
	})
}

// DetectPattern looks for spend correlation and repeat approvals across
// cross-reference matches. Two patterns is high risk.
func (m *Module) DetectPattern(ctx context.Context, matches []Match) (*receipts.Receipt, error) {
	var approvedSum, deniedSum float64
	var approvedN, deniedN int
	repeat := map[string]int{}
	for _, mt := range matches {
		switch mt.Outcome {
		case "approved":
			approvedSum += mt.TotalLobbyingSpend
			approvedN++
			repeat[mt.Applicant]++
		case "denied":
			deniedSum += mt.TotalLobbyingSpend
			deniedN++
		}
	}
	avgApproved := mean(approvedSum, approvedN)
	avgDenied := mean(deniedSum, deniedN)

	patterns := []map[string]any{}
	if avgApproved > avgDenied*2 {
		var r any = "infinity"
		if avgDenied != 0 {
			r = avgApproved / avgDenied
		}
		patterns = append(patterns, map[string]any{
			"type":               "spend_correlation",
			"description":        "Approved exemptions average 2x+ lobbying spend vs denied",
			"avg_approved_spend": avgApproved,
			"avg_denied_spend":   avgDenied,
			"ratio":              r,
		})
	}

	repeats := map[string]int{}
	repeatTotal := 0
	for entity, n := range repeat {
		if n > 1 {
			repeats[entity] = n
			repeatTotal += n
		}
	}
	if len(repeats) > 0 {
		patterns = append(patterns, map[string]any{
			"type":               "repeat_approvals",
			"description":        "Entities receiving multiple exemption approvals",
			"entities":           repeats,
			"total_repeat_count": repeatTotal,
		})
	}

	risk := "low"
	switch {
	case len(patterns) >= 2:
		risk = "high"
	case len(patterns) == 1:
		risk = "medium"
	}

	return m.emitter.Emit(ctx, "lobbying_pattern", map[string]any{
		"cross_refs_analyzed": len(matches),
		"patterns_detected":   len(patterns),
		"patterns":            patterns,
		"risk_level":          risk,
	})
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
