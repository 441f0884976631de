package gulf

import (
	"context"
	"fmt"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const (
	// GovernmentPaymentTrigger is the government payment total that alone
	// requires FARA registration.
	GovernmentPaymentTrigger = 100000.0
	// EightFigures marks government payments of ten million dollars or more.
	EightFigures = 10000000.0
)

// Entity is a party that may be acting as a foreign agent.
type Entity struct {
	ID                   string
	Name                 string
	PoliticalActivities  bool
	PublicRelations      bool
	DiplomaticActivities bool
}

// ForeignPayment is a payment from a foreign source.
type ForeignPayment struct {
	Source       string
	Amount       float64
	IsGovernment bool
}

// AssessFARARequirement emits fara_assessment. Two or more triggers, or
// government payments above GovernmentPaymentTrigger, require registration.
func (m *Module) AssessFARARequirement(ctx context.Context, e Entity, payments []ForeignPayment) (*receipts.Receipt, error) {
	var total, government float64
	sources := make([]string, 0, len(payments))
	for _, p := range payments {
		total += p.Amount
		if p.IsGovernment {
			government += p.Amount
		}
		sources = append(sources, orDefault(p.Source, "unknown"))
	}

	triggers := []string{}
	if government > 0 {
		triggers = append(triggers, "received_government_payments")
	}
	if e.PoliticalActivities {
		triggers = append(triggers, "political_activities")
	}
	if e.PublicRelations {
		triggers = append(triggers, "public_relations_capacity")
	}
	if e.DiplomaticActivities {
		triggers = append(triggers, "diplomatic_activities")
	}

	return m.emitter.Emit(ctx, "fara_assessment", map[string]any{
		"entity_id":              orDefault(e.ID, "unknown"),
		"entity_name":            orDefault(e.Name, "unknown"),
		"total_foreign_payments": total,
		"government_payments":    government,
		"payment_sources":        sources,
		"triggers":               triggers,
		"requires_registration":  len(triggers) >= 2 || government > GovernmentPaymentTrigger,
		"eight_figure_threshold": government >= EightFigures,
	})
}

// CheckRegistration emits fara_check. An empty date is recorded as null.
func (m *Module) CheckRegistration(ctx context.Context, entityID string, registered bool, registrationDate string) (*receipts.Receipt, error) {
	var date any
	if registrationDate != "" {
		date = registrationDate
	}
	return m.emitter.Emit(ctx, "fara_check", map[string]any{
		"entity_id":         entityID,
		"is_registered":     registered,
		"registration_date": date,
		"database_checked":  "DOJ FARA Database",
		"check_timestamp":   true,
	})
}

// ViolationEvidence supports a FARA violation finding.
type ViolationEvidence struct {
	GovernmentPayments      float64  `json:"government_payments"`
	Activities              []string `json:"activities"`
	SpecialCounselRequested bool     `json:"special_counsel_requested"`
	Requesters              []string `json:"requesters"`
}

// FlagViolation records an unregistered foreign agent. The escalation
// anomaly is emitted before the flag.
func (m *Module) FlagViolation(ctx context.Context, entityID string, ev ViolationEvidence) (*receipts.Receipt, error) {
	if _, err := m.emitter.EmitAnomaly(ctx, receipts.Anomaly{
		Metric:         "fara_violation",
		Delta:          1,
		Classification: receipts.ClassViolation,
		Action:         receipts.ActionEscalate,
	}); err != nil {
		return nil, fmt.Errorf("gulf: fara anomaly: %w", err)
	}

	severity := "medium"
	switch {
	case ev.GovernmentPayments > EightFigures:
		severity = "critical"
	case ev.GovernmentPayments > 1000000:
		severity = "high"
	}
	if ev.Activities == nil {
		ev.Activities = []string{}
	}
	if ev.Requesters == nil {
		ev.Requesters = []string{}
	}
	return m.emitter.Emit(ctx, "fara_violation", map[string]any{
		"entity_id":                 entityID,
		"evidence":                  ev,
		"foreign_payments":          ev.GovernmentPayments,
		"registration_status":       "unregistered",
		"activities":                ev.Activities,
		"severity":                  severity,
		"special_counsel_requested": ev.SpecialCounselRequested,
		"requesters":                ev.Requesters,
	})
}
