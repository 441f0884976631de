// Package license scores licensing deals: beneficial ownership, shell
// companies, fee payments and foreign partners.
package license

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const (
	// DefaultResolutionDepth bounds how many ownership layers are walked.
	DefaultResolutionDepth = 5
	// ShellIndicatorCount is the number of shell company indicators.
	ShellIndicatorCount = 5
	// LikelyShellScore is the shell score at which an entity is likely a shell.
	LikelyShellScore = 0.6
)

var secrecyJurisdictions = map[string]bool{
	"delaware":               true,
	"nevada":                 true,
	"wyoming":                true,
	"british virgin islands": true,
	"cayman islands":         true,
	"panama":                 true,
	"luxembourg":             true,
}

// Module holds the emitter and constants shared by the license functions.
type Module struct {
	emitter    *receipts.Emitter
	exposure   config.Exposure
	thresholds config.Thresholds
}

// New creates the license module.
func New(e *receipts.Emitter, cfg *config.Config) *Module {
	return &Module{emitter: e, exposure: cfg.Exposure, thresholds: cfg.Thresholds}
}

// Entity is a company in an ownership chain. Parent is its owner, if known.
// A zero OwnershipPercentage is recorded as full ownership.
type Entity struct {
	ID                  string  `json:"id,omitempty"`
	Name                string  `json:"name"`
	Type                string  `json:"type,omitempty"`
	Jurisdiction        string  `json:"jurisdiction,omitempty"`
	OwnershipPercentage float64 `json:"ownership_percentage,omitempty"`
	Parent              *Entity `json:"parent_entity,omitempty"`

	Employees           int  `json:"employees,omitempty"`
	RegisteredAgentOnly bool `json:"registered_agent_only,omitempty"`
	PhysicalOperations  bool `json:"physical_operations,omitempty"`
	NomineeDirectors    bool `json:"nominee_directors,omitempty"`
}

// Layer is one resolved level of an ownership chain.
type Layer struct {
	Level               int     `json:"level"`
	EntityName          string  `json:"entity_name"`
	EntityType          string  `json:"entity_type"`
	Jurisdiction        string  `json:"jurisdiction"`
	OwnershipPercentage float64 `json:"ownership_percentage"`
}

// Chain walks e's parents up to depth layers.
func Chain(e *Entity, depth int) ([]Layer, int) {
	var chain []Layer
	resolved := 0
	cur := e
	for i := 0; i < depth && cur != nil; i++ {
		pct := cur.OwnershipPercentage
		if pct == 0 {
			pct = 100
		}
		chain = append(chain, Layer{
			Level:               i,
			EntityName:          orDefault(cur.Name, "unknown"),
			EntityType:          orDefault(cur.Type, "unknown"),
			Jurisdiction:        orDefault(cur.Jurisdiction, "unknown"),
			OwnershipPercentage: pct,
		})
		if cur.Parent == nil {
			break
		}
		cur = cur.Parent
		resolved = i + 1
	}
	return chain, resolved
}

func (m *Module) idOf(e *Entity) (string, error) {
	if e.ID != "" {
		return e.ID, nil
	}
	h, err := m.emitter.Hasher().Hash(e)
	if err != nil {
		return "", fmt.Errorf("license: hash entity: %w", err)
	}
	return h[:12], nil
}

// ResolveOwnership emits ownership_resolution. The owner is identified
// only when the chain ends in an individual.
func (m *Module) ResolveOwnership(ctx context.Context, e *Entity, depth int) (*receipts.Receipt, error) {
	if depth <= 0 {
		depth = DefaultResolutionDepth
	}
	id, err := m.idOf(e)
	if err != nil {
		return nil, err
	}
	chain, resolved := Chain(e, depth)
	var ultimate any
	identified := false
	if len(chain) > 0 {
		last := chain[len(chain)-1]
		ultimate = last
		identified = last.EntityType == "individual"
	}
	if chain == nil {
		chain = []Layer{}
	}

	return m.emitter.Emit(ctx, "ownership_resolution", map[string]any{
		"entity_id":           id,
		"entity_name":         orDefault(e.Name, "unknown"),
		"ownership_chain":     chain,
		"resolution_depth":    resolved,
		"max_depth":           depth,
		"ultimate_owner":      ultimate,
		"owner_identified":    identified,
		"cta_exempt":          true,
		"should_be_disclosed": true,
	})
}

// ShellIndicators lists the shell company traits of e.
func ShellIndicators(e *Entity, jurisdiction string) []string {
	indicators := []string{}
	if secrecyJurisdictions[strings.ToLower(jurisdiction)] {
		indicators = append(indicators, "favorable_jurisdiction")
	}
	if e.Employees == 0 {
		indicators = append(indicators, "no_employees")
	}
	if e.RegisteredAgentOnly {
		indicators = append(indicators, "registered_agent_address")
	}
	if !e.PhysicalOperations {
		indicators = append(indicators, "no_physical_operations")
	}
	if e.NomineeDirectors {
		indicators = append(indicators, "nominee_directors")
	}
	return indicators
}

// TrackShellCompany emits shell_company.
func (m *Module) TrackShellCompany(ctx context.Context, e *Entity, jurisdiction string) (*receipts.Receipt, error) {
	id, err := m.idOf(e)
	if err != nil {
		return nil, err
	}
	indicators := ShellIndicators(e, jurisdiction)
	score := float64(len(indicators)) / ShellIndicatorCount
	return m.emitter.Emit(ctx, "shell_company", map[string]any{
		"entity_id":       id,
		"entity_name":     orDefault(e.Name, "unknown"),
		"jurisdiction":    jurisdiction,
		"indicators":      indicators,
		"indicator_count": len(indicators),
		"shell_score":     score,
		"likely_shell":    score >= LikelyShellScore,
	})
}

// FlagOpacity scores unresolved ownership layers; five or more is fully
// opaque.
func (m *Module) FlagOpacity(ctx context.Context, entityID string, unresolvedLayers int) (*receipts.Receipt, error) {
	score := math.Min(1.0, float64(unresolvedLayers)/DefaultResolutionDepth)
	severity := "low"
	switch {
	case score >= m.thresholds.OpacityCritical:
		severity = "critical"
	case score >= 0.6:
		severity = "high"
	case score >= 0.4:
		severity = "medium"
	}
	return m.emitter.Emit(ctx, "opacity_flag", map[string]any{
		"entity_id":                    entityID,
		"unresolved_layers":            unresolvedLayers,
		"opacity_score":                score,
		"severity":                     severity,
		"threshold_critical":           m.thresholds.OpacityCritical,
		"cta_would_require_disclosure": true,
		"cta_status":                   "gutted_march_2025",
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
