package loop

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/northstaraokeystone/trumpproof/pkg/domain"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// MaxReportedOverlaps bounds the overlaps listed in an entity_overlap receipt.
const MaxReportedOverlaps = 50

// Overlap is an entity seen in two or more modules.
type Overlap struct {
	Entity      string   `json:"entity"`
	Modules     []string `json:"modules"`
	ModuleCount int      `json:"module_count"`
}

// Overlaps computes entity overlaps across modules, most cross-domain first.
// It also returns the number of distinct entities seen.
func Overlaps(modules map[string][]*receipts.Receipt) ([]Overlap, int) {
	entityModules := map[string]map[string]struct{}{}
	for module, rs := range modules {
		for _, r := range rs {
			if r == nil {
				continue
			}
			for _, e := range ExtractEntities(r) {
				set, ok := entityModules[e]
				if !ok {
					set = map[string]struct{}{}
					entityModules[e] = set
				}
				set[module] = struct{}{}
			}
		}
	}

	overlaps := []Overlap{}
	for entity, set := range entityModules {
		if len(set) < 2 {
			continue
		}
		overlaps = append(overlaps, Overlap{Entity: entity, Modules: sortedKeys(set), ModuleCount: len(set)})
	}
	sort.Slice(overlaps, func(i, j int) bool {
		if overlaps[i].ModuleCount != overlaps[j].ModuleCount {
			return overlaps[i].ModuleCount > overlaps[j].ModuleCount
		}
		return overlaps[i].Entity < overlaps[j].Entity
	})
	return overlaps, len(entityModules)
}

// DetectEntityOverlap emits an entity_overlap receipt for modules, a map
// of module name to that module's receipts.
func (c *Correlator) DetectEntityOverlap(ctx context.Context, modules map[string][]*receipts.Receipt) (_ *receipts.Receipt, err error) {
	ctx, done := c.tracker.TrackOperation(ctx, "loop.entity_overlap", attribute.Int("modules", len(modules)))
	defer func() { done(err) }()

	overlaps, total := Overlaps(modules)
	maxOverlap := 0
	if len(overlaps) > 0 {
		maxOverlap = overlaps[0].ModuleCount
	}
	reported := overlaps
	if len(reported) > MaxReportedOverlaps {
		reported = reported[:MaxReportedOverlaps]
	}

	names := make([]string, 0, len(modules))
	for m := range modules {
		names = append(names, m)
	}
	sort.Strings(names)

	return c.emitter.Emit(ctx, "entity_overlap", map[string]any{
		"modules_analyzed":     names,
		"total_entities":       total,
		"overlapping_entities": len(overlaps),
		"overlaps":             reported,
		"max_overlap":          maxOverlap,
	})
}

// GroupByDomain partitions rs by inferred domain, for DetectEntityOverlap.
func (c *Correlator) GroupByDomain(rs []*receipts.Receipt) map[string][]*receipts.Receipt {
	out := map[string][]*receipts.Receipt{}
	for _, r := range rs {
		if r == nil {
			continue
		}
		d := c.classifier.InferReceipt(r)
		out[d] = append(out[d], r)
	}
	return out
}

// Flow is one money movement involving a traced entity.
type Flow struct {
	ReceiptType  string  `json:"receipt_type"`
	Amount       float64 `json:"amount"`
	Direction    string  `json:"direction"`
	Counterparty string  `json:"counterparty"`
	Module       string  `json:"module"`
}

// FlowTrace is the result of tracing one entity.
type FlowTrace struct {
	EntityID     string
	TotalInflow  float64
	TotalOutflow float64
	Flows        []Flow
}

// Net is inflow minus outflow.
func (t FlowTrace) Net() float64 { return t.TotalInflow - t.TotalOutflow }

// flowAmount is the first non-zero amount-like field.
func flowAmount(r *receipts.Receipt) float64 {
	return r.FirstNumber("amount", "payment_amount", "fee_amount", "contract_value")
}

// TraceFlows collects positive flows for entityID across rs. A flow is an
// inflow when the entity appears in the receipt's recipient_name.
func (c *Correlator) TraceFlows(entityID string, rs []*receipts.Receipt) FlowTrace {
	trace := FlowTrace{EntityID: entityID, Flows: []Flow{}}
	entity := NormalizeEntity(entityID)

	for _, r := range rs {
		if r == nil || !mentions(r, entity) {
			continue
		}
		amount := flowAmount(r)
		if amount <= 0 {
			continue
		}

		recipient := NormalizeEntity(r.String("recipient_name", ""))
		source := NormalizeEntity(r.String("source_name", ""))
		direction, counterparty := "outflow", recipient
		if strings.Contains(recipient, entity) {
			direction, counterparty = "inflow", source
		}

		trace.Flows = append(trace.Flows, Flow{
			ReceiptType:  r.Type,
			Amount:       amount,
			Direction:    direction,
			Counterparty: counterparty,
			Module:       c.classifier.InferReceipt(r),
		})
		if direction == "inflow" {
			trace.TotalInflow += amount
		} else {
			trace.TotalOutflow += amount
		}
	}
	return trace
}

// TraceMoneyFlow emits a money_flow receipt for entityID.
func (c *Correlator) TraceMoneyFlow(ctx context.Context, entityID string, rs []*receipts.Receipt) (*receipts.Receipt, error) {
	trace := c.TraceFlows(entityID, rs)
	return c.emitter.Emit(ctx, "money_flow", map[string]any{
		"entity_id":     entityID,
		"total_inflow":  trace.TotalInflow,
		"total_outflow": trace.TotalOutflow,
		"net_flow":      trace.Net(),
		"flow_count":    len(trace.Flows),
		"flows":         trace.Flows,
	})
}

// CentralityScore is one entity's connectedness.
type CentralityScore struct {
	Entity          string   `json:"entity"`
	Connections     int      `json:"connections"`
	Modules         []string `json:"modules"`
	ModuleCount     int      `json:"module_count"`
	TotalValue      float64  `json:"total_value"`
	CentralityScore float64  `json:"centrality_score"`
}

// Centrality scores entities by connections × modules × log10(value + 1),
// highest first.
func (c *Correlator) Centrality(entities []string, rs []*receipts.Receipt) []CentralityScore {
	scores := make([]CentralityScore, 0, len(entities))
	for _, entity := range entities {
		key := NormalizeEntity(entity)
		connections := 0
		modules := map[string]struct{}{}
		total := 0.0

		for _, r := range rs {
			if r == nil || !mentions(r, key) {
				continue
			}
			connections++
			modules[c.classifier.InferReceipt(r)] = struct{}{}
			total += r.FirstNumber("amount", "payment_amount")
		}

		score := 0.0
		if total > 0 {
			score = float64(connections) * float64(len(modules)) * math.Log10(total+1)
		}
		scores = append(scores, CentralityScore{
			Entity:          entity,
			Connections:     connections,
			Modules:         sortedKeys(modules),
			ModuleCount:     len(modules),
			TotalValue:      total,
			CentralityScore: score,
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].CentralityScore > scores[j].CentralityScore
	})
	return scores
}

// ComputeCentrality emits a centrality receipt for entities.
func (c *Correlator) ComputeCentrality(ctx context.Context, entities []string, rs []*receipts.Receipt) (*receipts.Receipt, error) {
	scores := c.Centrality(entities, rs)
	var most any
	if len(scores) > 0 {
		most = scores[0]
	}
	return c.emitter.Emit(ctx, "centrality", map[string]any{
		"entities_analyzed": len(entities),
		"scores":            scores,
		"most_central":      most,
	})
}

// Entity describes a counterparty checked for PIF connections.
type Entity struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	Country        string `json:"country,omitempty"`
	IsGovernment   bool   `json:"is_government,omitempty"`
	GovernmentTies bool   `json:"government_ties,omitempty"`
}

func (e Entity) idOrUnknown() string {
	if e.ID == "" {
		return "unknown"
	}
	return e.ID
}

func (e Entity) nameOrUnknown() string {
	if e.Name == "" {
		return "unknown"
	}
	return e.Name
}

// pifNameFragments are name fragments of entities known to be PIF funded.
var pifNameFragments = []string{"affinity", "liv golf", "dar global", "dar al arkan"}

// PIFIndicators lists why e is considered PIF connected.
func PIFIndicators(e Entity) []string {
	indicators := []string{}
	name := NormalizeEntity(e.Name)

	if strings.Contains(name, "pif") || strings.Contains(name, "public investment fund") {
		indicators = append(indicators, "direct_pif_entity")
	}
	if NormalizeEntity(e.Country) == "saudi arabia" && (e.IsGovernment || e.GovernmentTies) {
		indicators = append(indicators, "saudi_government")
	}
	for _, frag := range pifNameFragments {
		if strings.Contains(name, frag) {
			indicators = append(indicators, "known_pif_connected:"+frag)
		}
	}
	return indicators
}

// FlagPIFConnection emits a pif_connection receipt for e.
func (c *Correlator) FlagPIFConnection(ctx context.Context, e Entity) (*receipts.Receipt, error) {
	indicators := PIFIndicators(e)
	connected := len(indicators) > 0
	domains := []string{}
	if connected {
		domains = []string{domain.Gulf, domain.Golf, domain.License}
	}
	return c.emitter.Emit(ctx, "pif_connection", map[string]any{
		"entity_id":          e.idOrUnknown(),
		"entity_name":        e.nameOrUnknown(),
		"pif_indicators":     indicators,
		"is_pif_connected":   connected,
		"pif_total_exposure": c.exposure.PIFTotal(),
		"domains":            domains,
	})
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
