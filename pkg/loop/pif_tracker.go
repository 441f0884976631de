package loop

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/domain"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// PIFConnection describes a known PIF-funded entity.
type PIFConnection struct {
	KnownEntity  string  `json:"known_entity"`
	Domain       string  `json:"domain"`
	Investment   float64 `json:"investment"`
	Relationship string  `json:"relationship"`
}

// knownPIFEntities returns the known PIF-connected entities in match order.
func (c *Correlator) knownPIFEntities() []PIFConnection {
	return []PIFConnection{
		{"affinity partners", domain.Gulf, c.exposure.GulfPIFInvestment, "direct_investment"},
		{"liv golf", domain.Golf, c.exposure.GolfLIVPIFInvestment, "93%_ownership"},
		{"dar global", domain.License, 0, "development_partner"},
		{"dar al arkan", domain.License, 0, "parent_of_dar_global"},
	}
}

// KnownPIFConnection returns the first known entity contained in name.
func (c *Correlator) KnownPIFConnection(name string) (PIFConnection, bool) {
	n := NormalizeEntity(name)
	for _, k := range c.knownPIFEntities() {
		if strings.Contains(n, k.KnownEntity) {
			return k, true
		}
	}
	return PIFConnection{}, false
}

// TrackPIFEntity emits a pif_entity receipt recording e in domainName.
func (c *Correlator) TrackPIFEntity(ctx context.Context, e Entity, domainName string) (*receipts.Receipt, error) {
	known, ok := c.KnownPIFConnection(e.Name)
	var connection any
	investment := 0.0
	if ok {
		connection = known
		investment = known.Investment
	}
	return c.emitter.Emit(ctx, "pif_entity", map[string]any{
		"entity_id":           e.idOrUnknown(),
		"entity_name":         e.nameOrUnknown(),
		"domain":              domainName,
		"known_connection":    connection,
		"is_known_pif_entity": ok,
		"pif_investment":      investment,
	})
}

// PIFDomainExposure is one row of the PIF aggregate table.
type PIFDomainExposure struct {
	Entities            []string `json:"entities"`
	DirectInvestment    float64  `json:"direct_investment"`
	AUMManaged          float64  `json:"aum_managed,omitempty"`
	FeesPaid            float64  `json:"fees_paid,omitempty"`
	OwnershipPercentage float64  `json:"ownership_percentage,omitempty"`
	ProjectValue        float64  `json:"project_value,omitempty"`
	CFIUSExposure       bool     `json:"cfius_exposure,omitempty"`
	Relationship        string   `json:"relationship"`
}

// HasExposure reports whether the row documents any exposure.
func (d PIFDomainExposure) HasExposure() bool {
	return d.DirectInvestment > 0 || d.ProjectValue > 0 || d.CFIUSExposure
}

// PIFExposureTable returns the documented PIF exposure per domain.
func (c *Correlator) PIFExposureTable() map[string]PIFDomainExposure {
	return map[string]PIFDomainExposure{
		domain.Gulf: {
			Entities:         []string{"Affinity Partners"},
			DirectInvestment: c.exposure.GulfPIFInvestment,
			AUMManaged:       c.exposure.GulfAffinityAUM,
			FeesPaid:         c.exposure.GulfFeesCollected,
			Relationship:     "LP investment",
		},
		domain.Golf: {
			Entities:            []string{"LIV Golf"},
			DirectInvestment:    c.exposure.GolfLIVPIFInvestment,
			OwnershipPercentage: 93,
			Relationship:        "93% ownership",
		},
		domain.License: {
			Entities:     []string{"Dar Global", "Dar Al Arkan"},
			ProjectValue: c.exposure.LicensePIFProjectValue,
			Relationship: "Development partnerships",
		},
		domain.Tariff: {
			Entities:      []string{"EA (Electronic Arts)"},
			CFIUSExposure: true,
			Relationship:  "Trade policy affected",
		},
	}
}

// CrossDomainThreshold is the number of exposed domains that confirms PIF
// as a cross-domain node.
const CrossDomainThreshold = 4

// AggregatePIFExposure emits a pif_aggregate receipt over the documented
// exposure table.
func (c *Correlator) AggregatePIFExposure(ctx context.Context) (*receipts.Receipt, error) {
	table := c.PIFExposureTable()
	totalDirect := 0.0
	count := 0
	for _, d := range table {
		totalDirect += d.DirectInvestment
		if d.HasExposure() {
			count++
		}
	}
	return c.emitter.Emit(ctx, "pif_aggregate", map[string]any{
		"by_domain":               table,
		"domain_count":            count,
		"total_direct_investment": totalDirect,
		"total_exposure":          c.exposure.PIFTotal(),
		"cross_domain_verified":   count >= CrossDomainThreshold,
	})
}

// PIFPattern is a detected PIF pattern.
type PIFPattern struct {
	Type        string   `json:"type"`
	Entity      string   `json:"entity,omitempty"`
	Domains     []string `json:"domains,omitempty"`
	DomainCount int      `json:"domain_count,omitempty"`
	TotalValue  float64  `json:"total_value,omitempty"`
	Threshold   float64  `json:"threshold,omitempty"`
}

// PIFPatternResult is the outcome of a PIF pattern scan.
type PIFPatternResult struct {
	Related  []*receipts.Receipt
	Patterns []PIFPattern
}

// receiptText is the lower-cased JSON form of r used for keyword scans.
func receiptText(r *receipts.Receipt) string {
	b, err := json.Marshal(r)
	if err != nil {
		return strings.ToLower(r.Type)
	}
	return NormalizeEntity(string(b))
}

// FindPIFPatterns scans rs for PIF mentions. A known entity seen in two or
// more of the five source domains is a cross-domain pattern; the loop's own
// summaries never count as a domain. Summed value above the significant
// flow threshold is a second pattern.
func (c *Correlator) FindPIFPatterns(rs []*receipts.Receipt) PIFPatternResult {
	known := c.knownPIFEntities()
	res := PIFPatternResult{Related: []*receipts.Receipt{}, Patterns: []PIFPattern{}}

	entityDomains := map[string]map[string]struct{}{}
	var order []string
	for _, r := range rs {
		if r == nil {
			continue
		}
		text := receiptText(r)
		var found []string
		for _, k := range known {
			if strings.Contains(text, k.KnownEntity) {
				found = append(found, k.KnownEntity)
			}
		}
		if len(found) == 0 && !strings.Contains(text, "pif") && !strings.Contains(text, "saudi") {
			continue
		}
		res.Related = append(res.Related, r)

		d := c.classifier.InferReceipt(r)
		if d == domain.Unknown || d == domain.Loop {
			continue
		}
		for _, e := range found {
			set, ok := entityDomains[e]
			if !ok {
				set = map[string]struct{}{}
				entityDomains[e] = set
				order = append(order, e)
			}
			set[d] = struct{}{}
		}
	}

	for _, e := range order {
		if set := entityDomains[e]; len(set) >= 2 {
			res.Patterns = append(res.Patterns, PIFPattern{
				Type:        "cross_domain_pif_entity",
				Entity:      e,
				Domains:     sortedKeys(set),
				DomainCount: len(set),
			})
		}
	}

	total := 0.0
	for _, r := range res.Related {
		total += r.FirstNumber("amount", "pif_investment")
	}
	if threshold := c.thresholds.PIFSignificantFlow; total > threshold {
		res.Patterns = append(res.Patterns, PIFPattern{
			Type:       "significant_pif_flow",
			TotalValue: total,
			Threshold:  threshold,
		})
	}
	return res
}

// DetectPIFPattern emits a pif_pattern receipt over rs.
func (c *Correlator) DetectPIFPattern(ctx context.Context, rs []*receipts.Receipt) (*receipts.Receipt, error) {
	res := c.FindPIFPatterns(rs)
	return c.emitter.Emit(ctx, "pif_pattern", map[string]any{
		"receipts_analyzed":      len(rs),
		"pif_related_receipts":   len(res.Related),
		"patterns_detected":      len(res.Patterns),
		"patterns":               res.Patterns,
		"central_node_confirmed": len(res.Patterns) >= 2,
	})
}
