// Package violation decides whether a receipt records a violation.
//
// A Detector combines a fixed set of payload flags with optional CEL rules
// evaluated over the receipt. The correlator, harvest and simulator each
// use their own flag set.
package violation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Flag sets.
var (
	// PriorityFlags mark a receipt as a priority violation during analyze.
	PriorityFlags = []string{"violation", "exceeds_threshold", "excessive", "favoritism_detected"}
	// HarvestFlags select receipts for the violation harvest.
	HarvestFlags = []string{"violation", "is_violation", "exceeds_threshold", "excessive", "favoritism_detected", "is_emolument", "fara_violation"}
	// SimFlags count violations in a simulation run.
	SimFlags = []string{"violation", "is_violation", "exceeds_threshold", "excessive", "favoritism_detected", "is_emolument"}
)

// Detector flags receipts carrying any truthy flag or matching a rule.
type Detector struct {
	flags          []string
	includeAnomaly bool

	env      *cel.Env
	rules    []string
	prgCache map[string]cel.Program
	mu       sync.RWMutex
}

// NewDetector creates a detector over flags.
func NewDetector(flags []string) *Detector {
	return &Detector{flags: flags, prgCache: make(map[string]cel.Program)}
}

// NewHarvestDetector treats anomaly receipts as violations too.
func NewHarvestDetector() *Detector {
	d := NewDetector(HarvestFlags)
	d.includeAnomaly = true
	return d
}

// WithRules adds CEL expressions evaluated against the receipt. Each rule
// sees the flat receipt as `receipt` and must return a bool. Rules are
// compiled eagerly so a bad expression fails at construction.
func (d *Detector) WithRules(rules ...string) (*Detector, error) {
	if d.env == nil {
		env, err := cel.NewEnv(cel.Variable("receipt", cel.DynType))
		if err != nil {
			return nil, fmt.Errorf("failed to create CEL environment: %w", err)
		}
		d.env = env
	}
	for _, r := range rules {
		if _, err := d.program(r); err != nil {
			return nil, fmt.Errorf("violation rule %q: %w", r, err)
		}
	}
	d.rules = append(d.rules, rules...)
	return d, nil
}

// Flags returns the flag names the detector checks.
func (d *Detector) Flags() []string { return d.flags }

// Matches reports whether r is a violation. Rule evaluation errors such as
// a missing key count as no match.
func (d *Detector) Matches(r *receipts.Receipt) bool {
	if d.includeAnomaly && r.Type == receipts.AnomalyType {
		return true
	}
	for _, f := range d.flags {
		if r.Truthy(f) {
			return true
		}
	}
	if len(d.rules) == 0 {
		return false
	}
	input := map[string]any{"receipt": celValue(r.Map())}
	for _, rule := range d.rules {
		if ok, err := d.evaluate(rule, input); err == nil && ok {
			return true
		}
	}
	return false
}

// Filter returns the receipts that match, preserving order.
func (d *Detector) Filter(rs []*receipts.Receipt) []*receipts.Receipt {
	var out []*receipts.Receipt
	for _, r := range rs {
		if d.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (d *Detector) program(expr string) (cel.Program, error) {
	d.mu.RLock()
	prg, hit := d.prgCache[expr]
	d.mu.RUnlock()
	if hit {
		return prg, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if prg, hit = d.prgCache[expr]; hit {
		return prg, nil
	}
	ast, issues := d.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if ot := ast.OutputType(); !ot.IsExactType(cel.BoolType) && !ot.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile: rule must return bool, got %s", ot)
	}
	p, err := d.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	d.prgCache[expr] = p
	return p, nil
}

func (d *Detector) evaluate(expr string, input map[string]any) (bool, error) {
	prg, err := d.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}

// celValue copies a receipt value into types CEL can compare. Exact large
// integers become doubles like every other payload number.
func celValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = celValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = celValue(e)
		}
		return out
	default:
		return v
	}
}
