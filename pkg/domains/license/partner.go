package license

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Project is a development done with a partner.
type Project struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Partner is a foreign licensing partner.
type Partner struct {
	ID                     string    `json:"id,omitempty"`
	Name                   string    `json:"name"`
	Country                string    `json:"country,omitempty"`
	ParentCompany          string    `json:"parent_company,omitempty"`
	Projects               []Project `json:"projects,omitempty"`
	RelationshipStart      string    `json:"relationship_start,omitempty"`
	StateOwned             bool      `json:"state_owned,omitempty"`
	GovernmentContracts    bool      `json:"government_contracts,omitempty"`
	GovernmentContractVal  float64   `json:"government_contract_value,omitempty"`
	RoyalFamilyConnection  bool      `json:"royal_family_connection,omitempty"`
	RoyalConnectionDetails string    `json:"royal_connection_details,omitempty"`
	SWFInvestment          bool      `json:"swf_investment,omitempty"`
	SWFName                string    `json:"swf_name,omitempty"`
	SWFInvestmentAmount    float64   `json:"swf_investment_amount,omitempty"`
	PIFInvestment          bool      `json:"pif_investment,omitempty"`
	PIFInvestmentAmount    float64   `json:"pif_investment_amount,omitempty"`
	GovernmentTies         bool      `json:"government_ties,omitempty"`
}

func (m *Module) partnerID(p Partner) (string, error) {
	if p.ID != "" {
		return p.ID, nil
	}
	h, err := m.emitter.Hasher().Hash(p)
	if err != nil {
		return "", fmt.Errorf("license: hash partner: %w", err)
	}
	return h[:12], nil
}

// RegisterPartner emits partner_registration.
func (m *Module) RegisterPartner(ctx context.Context, p Partner, country string) (*receipts.Receipt, error) {
	id, err := m.partnerID(p)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, pr := range p.Projects {
		total += pr.Value
	}
	var parent any
	if p.ParentCompany != "" {
		parent = p.ParentCompany
	}
	projects := p.Projects
	if projects == nil {
		projects = []Project{}
	}
	return m.emitter.Emit(ctx, "partner_registration", map[string]any{
		"partner_id":          id,
		"partner_name":        orDefault(p.Name, "unknown"),
		"country":             country,
		"parent_company":      parent,
		"projects":            projects,
		"total_project_value": total,
		"relationship_start":  orDefault(p.RelationshipStart, "unknown"),
	})
}

// GovernmentTies lists the state connections of p.
func GovernmentTies(p Partner) []map[string]any {
	ties := []map[string]any{}
	if p.StateOwned {
		ties = append(ties, map[string]any{"type": "state_owned", "description": "Partner is state-owned enterprise"})
	}
	if p.GovernmentContracts {
		ties = append(ties, map[string]any{"type": "government_contracts", "value": p.GovernmentContractVal})
	}
	if p.RoyalFamilyConnection {
		ties = append(ties, map[string]any{"type": "royal_family", "description": orDefault(p.RoyalConnectionDetails, "unknown")})
	}
	if p.SWFInvestment {
		ties = append(ties, map[string]any{"type": "swf_investment", "fund": orDefault(p.SWFName, "unknown"), "amount": p.SWFInvestmentAmount})
	}
	return ties
}

// AssessGovernmentTies emits government_ties. Two or more ties is high risk.
func (m *Module) AssessGovernmentTies(ctx context.Context, partnerID string, p Partner) (*receipts.Receipt, error) {
	ties := GovernmentTies(p)
	risk := "low"
	switch {
	case len(ties) >= 2:
		risk = "high"
	case len(ties) == 1:
		risk = "medium"
	}
	return m.emitter.Emit(ctx, "government_ties", map[string]any{
		"partner_id":   partnerID,
		"partner_name": orDefault(p.Name, "unknown"),
		"country":      orDefault(p.Country, "unknown"),
		"ties":         ties,
		"tie_count":    len(ties),
		"risk_level":   risk,
	})
}

// PIFConnections lists the ways p connects to Saudi Arabia's Public
// Investment Fund.
func PIFConnections(p Partner) []map[string]any {
	conns := []map[string]any{}
	if p.PIFInvestment {
		conns = append(conns, map[string]any{"type": "direct_investment", "amount": p.PIFInvestmentAmount})
	}
	parent := strings.ToLower(p.ParentCompany)
	if strings.Contains(parent, "dar") || strings.Contains(parent, "arkan") {
		conns = append(conns, map[string]any{
			"type":       "pif_ecosystem",
			"entity":     p.ParentCompany,
			"connection": "Dar Al Arkan / Dar Global",
		})
	}
	if strings.ToLower(p.Country) == "saudi arabia" && p.GovernmentTies {
		conns = append(conns, map[string]any{
			"type":        "saudi_government",
			"description": "Saudi government ties imply PIF connection potential",
		})
	}
	return conns
}

// CrossReferencePIF emits pif_cross_reference.
func (m *Module) CrossReferencePIF(ctx context.Context, p Partner) (*receipts.Receipt, error) {
	id, err := m.partnerID(p)
	if err != nil {
		return nil, err
	}
	conns := PIFConnections(p)
	return m.emitter.Emit(ctx, "pif_cross_reference", map[string]any{
		"partner_id":           id,
		"partner_name":         orDefault(p.Name, "unknown"),
		"pif_connections":      conns,
		"is_pif_connected":     len(conns) > 0,
		"pif_connection_count": len(conns),
		"pif_gulf_exposure":    m.exposure.GulfPIFInvestment,
		"pif_golf_exposure":    m.exposure.GolfLIVPIFInvestment,
		"pif_total_documented": m.exposure.GulfPIFInvestment + m.exposure.GolfLIVPIFInvestment,
	})
}
