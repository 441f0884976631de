package border

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// DocumentedWrongfulDetentions is the publicly documented count of U.S.
// citizens detained.
const DocumentedWrongfulDetentions = 170

var (
	strongDocuments = map[string]bool{"passport": true, "birth_certificate": true, "naturalization_certificate": true}
	mediumDocuments = map[string]bool{"ssn_card": true, "drivers_license": true, "military_id": true}
)

// Document is an identity document presented by a detainee.
type Document struct {
	Type                 string
	IndicatesCitizenship bool
}

// VerifyCitizenship grades the documents presented. Weak documentation or
// likely citizenship both require further review.
func (m *Module) VerifyCitizenship(ctx context.Context, detaineeID string, docs []Document) (*receipts.Receipt, error) {
	types := make([]string, 0, len(docs))
	strong, medium := 0, 0
	indicates := false
	for _, d := range docs {
		t := orDefault(d.Type, "unknown")
		types = append(types, t)
		switch {
		case strongDocuments[strings.ToLower(t)]:
			strong++
		case mediumDocuments[strings.ToLower(t)]:
			medium++
		}
		indicates = indicates || d.IndicatesCitizenship
	}

	strength, likely := "low", false
	switch {
	case strong > 0:
		strength, likely = "high", indicates
	case medium > 0:
		strength, likely = "medium", indicates
	}

	return m.emitter.Emit(ctx, "citizenship_verification", map[string]any{
		"detainee_id":             detaineeID,
		"documents_reviewed":      len(docs),
		"document_types":          types,
		"strong_document_count":   strong,
		"medium_document_count":   medium,
		"verification_strength":   strength,
		"citizenship_likely":      likely,
		"requires_further_review": strength == "low" || likely,
	})
}

// Evidence that a detainee is a U.S. citizen.
type Evidence struct {
	Type              string
	Description       string
	Strength          string
	Birthplace        string
	ParentCitizenship string
	MilitaryService   bool
}

// FlagUSCitizen records a potential citizen detention. The escalation
// anomaly is emitted before the flag.
func (m *Module) FlagUSCitizen(ctx context.Context, detaineeID string, ev Evidence) (*receipts.Receipt, error) {
	if _, err := m.emitter.EmitAnomaly(ctx, receipts.Anomaly{
		Metric:         "potential_citizen_detention",
		Baseline:       0,
		Delta:          1,
		Classification: receipts.ClassViolation,
		Action:         receipts.ActionEscalate,
	}); err != nil {
		return nil, fmt.Errorf("border: citizen anomaly: %w", err)
	}
	return m.emitter.Emit(ctx, "citizen_flag", map[string]any{
		"detainee_id":          detaineeID,
		"evidence_type":        orDefault(ev.Type, "unknown"),
		"evidence_description": ev.Description,
		"evidence_strength":    orDefault(ev.Strength, "unknown"),
		"birthplace":           orDefault(ev.Birthplace, "unknown"),
		"parent_citizenship":   orDefault(ev.ParentCitizenship, "unknown"),
		"military_service":     ev.MilitaryService,
		"priority":             "CRITICAL",
		"action_required":      "IMMEDIATE_REVIEW",
	})
}

// WrongfulCase is one documented wrongful detention. Age zero is unknown.
type WrongfulCase struct {
	DetentionDays   int
	Age             int
	MilitaryVeteran bool
	Disabled        bool
	Resolved        bool
	Deported        bool
}

// TrackWrongfulDetention aggregates wrongful detention cases. A case can
// fall into several categories; "other" holds cases in none.
func (m *Module) TrackWrongfulDetention(ctx context.Context, cases []WrongfulCase) (*receipts.Receipt, error) {
	categories := map[string]int{"military_veteran": 0, "minor": 0, "disabled": 0, "elderly": 0, "other": 0}
	totalDays, resolved, detained, deported := 0, 0, 0, 0
	for _, c := range cases {
		totalDays += c.DetentionDays
		minor := c.Age > 0 && c.Age < 18
		elderly := c.Age >= 65
		if c.MilitaryVeteran {
			categories["military_veteran"]++
		}
		if minor {
			categories["minor"]++
		}
		if c.Disabled {
			categories["disabled"]++
		}
		if elderly {
			categories["elderly"]++
		}
		if !c.MilitaryVeteran && !minor && !c.Disabled && !elderly {
			categories["other"]++
		}
		if c.Resolved {
			resolved++
		}
		if c.Deported {
			deported++
		}
		if !c.Resolved && !c.Deported {
			detained++
		}
	}
	avg := 0.0
	if len(cases) > 0 {
		avg = float64(totalDays) / float64(len(cases))
	}

	return m.emitter.Emit(ctx, "wrongful_detention_tracking", map[string]any{
		"total_cases":                   len(cases),
		"total_wrongful_detention_days": totalDays,
		"average_detention_days":        avg,
		"categories":                    categories,
		"resolved":                      resolved,
		"still_detained":                detained,
		"wrongfully_deported":           deported,
		"documented_baseline":           DocumentedWrongfulDetentions,
		"constitutional_violations":     len(cases),
	})
}
