package loop

import (
	"context"
	"strconv"

	"github.com/northstaraokeystone/trumpproof/pkg/observability"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// ModuleState groups the receipts of one inferred domain.
type ModuleState struct {
	Count    int
	Receipts []*receipts.Receipt
}

// State is the transient result of Sense. It lives for one cycle.
type State struct {
	ByModule      map[string]*ModuleState
	ModuleOrder   []string // domains in order of first appearance
	ByType        map[string]int
	Anomalies     []*receipts.Receipt
	TotalReceipts int
}

// PriorityViolation is a flagged receipt found during Analyze.
type PriorityViolation struct {
	Module      string
	ReceiptType string
	Details     *receipts.Receipt
}

// Analysis is the result of Analyze.
type Analysis struct {
	ModulesActive       []string
	AnomalyCount        int
	CrossDomainPatterns []map[string]any
	PriorityViolations  []PriorityViolation
}

// Sense partitions receipts by inferred domain and by
// exact receipt_type, and collects anomalies.
func (c *Correlator) Sense(rs []*receipts.Receipt) *State {
	st := &State{
		ByModule:      make(map[string]*ModuleState),
		ByType:        make(map[string]int),
		Anomalies:     []*receipts.Receipt{},
		TotalReceipts: len(rs),
	}
	for _, r := range rs {
		if r == nil {
			continue
		}
		typ := r.Type
		if typ == "" {
			typ = "unknown"
		}
		module := c.classifier.InferReceipt(r)

		ms, ok := st.ByModule[module]
		if !ok {
			ms = &ModuleState{}
			st.ByModule[module] = ms
			st.ModuleOrder = append(st.ModuleOrder, module)
		}
		ms.Count++
		ms.Receipts = append(ms.Receipts, r)

		st.ByType[typ]++

		if typ == receipts.AnomalyType {
			st.Anomalies = append(st.Anomalies, r)
		}
	}
	return st
}

// Analyze scans domains in priority order for flagged receipts.
func (c *Correlator) Analyze(st *State) *Analysis {
	a := &Analysis{
		ModulesActive:       append([]string{}, st.ModuleOrder...),
		AnomalyCount:        len(st.Anomalies),
		CrossDomainPatterns: []map[string]any{},
		PriorityViolations:  []PriorityViolation{},
	}
	for _, module := range c.priority {
		ms, ok := st.ByModule[module]
		if !ok {
			continue
		}
		for _, r := range ms.Receipts {
			if c.analyze.Matches(r) {
				a.PriorityViolations = append(a.PriorityViolations, PriorityViolation{
					Module:      module,
					ReceiptType: r.Type,
					Details:     r,
				})
			}
		}
	}
	return a
}

// RunCycle senses and analyzes rs and emits a loop_cycle receipt. An empty
// cycleID is derived from the current time.
func (c *Correlator) RunCycle(ctx context.Context, rs []*receipts.Receipt, cycleID string) (_ *receipts.Receipt, err error) {
	start := c.clock()
	if cycleID == "" {
		secs := float64(start.UnixNano()) / 1e9
		cycleID = c.emitter.Hasher().SumString(strconv.FormatFloat(secs, 'f', -1, 64))[:16]
	}

	ctx, done := c.tracker.TrackOperation(ctx, "loop.cycle", observability.CycleOperation(cycleID, len(rs))...)
	defer func() { done(err) }()

	st := c.Sense(rs)
	analysis := c.Analyze(st)

	elapsedMs := float64(c.clock().Sub(start).Microseconds()) / 1000
	targetSeconds := c.targetCycle.Seconds()

	r, err := c.emitter.Emit(ctx, "loop_cycle", map[string]any{
		"cycle_id":             cycleID,
		"receipts_processed":   len(rs),
		"modules_active":       analysis.ModulesActive,
		"anomalies_detected":   analysis.AnomalyCount,
		"priority_violations":  len(analysis.PriorityViolations),
		"cycle_time_ms":        elapsedMs,
		"target_cycle_seconds": targetSeconds,
		"within_target":        elapsedMs < targetSeconds*1000,
	})
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "cycle complete",
		"cycle_id", cycleID,
		"receipts", len(rs),
		"priority_violations", len(analysis.PriorityViolations),
		"cycle_time_ms", elapsedMs,
	)
	return r, nil
}
