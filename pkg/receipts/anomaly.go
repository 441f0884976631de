package receipts

import (
	"context"
	"errors"
	"fmt"
)

// AnomalyType is the receipt_type of every anomaly receipt.
const AnomalyType = "anomaly"

// Classification of an anomaly.
type Classification string

const (
	ClassDrift       Classification = "drift"
	ClassDegradation Classification = "degradation"
	ClassViolation   Classification = "violation"
	ClassDeviation   Classification = "deviation"
	ClassAntiPattern Classification = "anti_pattern"
)

// Action required in response to an anomaly.
type Action string

const (
	ActionAlert    Action = "alert"
	ActionEscalate Action = "escalate"
	ActionHalt     Action = "halt"
	ActionAutoFix  Action = "auto_fix"
)

// StopRule metrics.
const (
	MetricHashMismatch    = "hash_mismatch"
	MetricUnverifiedClaim = "unverified_claim"
)

// Anomaly is the fixed payload shape of an anomaly receipt. Details are
// merged into the payload alongside the fixed fields.
type Anomaly struct {
	Metric         string
	Baseline       float64
	Delta          float64
	Classification Classification
	Action         Action
	Details        map[string]any
}

// Payload returns the anomaly as a receipt payload.
func (a Anomaly) Payload() map[string]any {
	p := make(map[string]any, len(a.Details)+5)
	for k, v := range a.Details {
		p[k] = v
	}
	p["metric"] = a.Metric
	p["baseline"] = a.Baseline
	p["delta"] = a.Delta
	p["classification"] = string(a.Classification)
	p["action"] = string(a.Action)
	return p
}

// EmitAnomaly shapes and emits an anomaly receipt. The only errors are
// sink and payload errors from Emit.
func (e *Emitter) EmitAnomaly(ctx context.Context, a Anomaly) (*Receipt, error) {
	r, err := e.Emit(ctx, AnomalyType, a.Payload())
	if err != nil {
		return nil, err
	}
	e.logger.WarnContext(ctx, "anomaly",
		"metric", a.Metric,
		"classification", a.Classification,
		"action", a.Action,
		"delta", a.Delta,
	)
	return r, nil
}

// StopHashMismatch records a hash_mismatch anomaly with action halt and
// returns the fatal StopRule error.
func (e *Emitter) StopHashMismatch(ctx context.Context, expected, actual string) error {
	a := Anomaly{
		Metric:         MetricHashMismatch,
		Delta:          -1,
		Classification: ClassViolation,
		Action:         ActionHalt,
		Details:        map[string]any{"expected": expected, "actual": actual},
	}
	msg := fmt.Sprintf("Hash mismatch: expected %s..., got %s...", prefix(expected, 16), prefix(actual, 16))
	return e.stop(ctx, a, msg, ErrHashMismatch)
}

// StopUnverifiedClaim records an unverified_claim anomaly with action
// escalate and returns the fatal StopRule error.
func (e *Emitter) StopUnverifiedClaim(ctx context.Context, claim map[string]any) error {
	a := Anomaly{
		Metric:         MetricUnverifiedClaim,
		Delta:          -1,
		Classification: ClassViolation,
		Action:         ActionEscalate,
		Details:        map[string]any{"claim": claim},
	}
	kind, _ := claim["type"].(string)
	if kind == "" {
		kind = "unknown"
	}
	return e.stop(ctx, a, "Unverified claim: "+kind, ErrUnverifiedClaim)
}

func (e *Emitter) stop(ctx context.Context, a Anomaly, msg string, cause error) error {
	stop := &StopRuleError{Metric: a.Metric, Message: msg, cause: cause}
	r, err := e.EmitAnomaly(ctx, a)
	stop.Anomaly = r
	e.logger.ErrorContext(ctx, "stoprule fired", "metric", a.Metric, "message", msg)
	if e.observer != nil {
		e.observer.StopRuleFired(a.Metric)
	}
	if err != nil {
		return errors.Join(stop, err)
	}
	return stop
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
