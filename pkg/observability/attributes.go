package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
var (
	AttrTenant     = attribute.Key("trumpproof.tenant")
	AttrOperation  = attribute.Key("trumpproof.operation")
	AttrOutcome    = attribute.Key("trumpproof.outcome")
	AttrStopRule   = attribute.Key("trumpproof.stoprule.metric")
	AttrReceipts   = attribute.Key("trumpproof.receipts")
	AttrModule     = attribute.Key("trumpproof.module")
	AttrCycleID    = attribute.Key("trumpproof.cycle.id")
	AttrScenario   = attribute.Key("trumpproof.scenario.name")
	AttrCycles     = attribute.Key("trumpproof.scenario.cycles")
	AttrSeed       = attribute.Key("trumpproof.scenario.seed")
	AttrSegmentID  = attribute.Key("trumpproof.segment.id")
	AttrMerkleRoot = attribute.Key("trumpproof.segment.merkle_root")
)

// CycleOperation describes one correlator pass over a receipt stream.
func CycleOperation(cycleID string, receipts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCycleID.String(cycleID),
		AttrReceipts.Int(receipts),
	}
}

// ScenarioOperation describes a simulation run.
func ScenarioOperation(name string, cycles int, seed int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrScenario.String(name),
		AttrCycles.Int(cycles),
		AttrSeed.Int64(seed),
	}
}

// SealOperation describes a sealed segment.
func SealOperation(segmentID, merkleRoot string, receipts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSegmentID.String(segmentID),
		AttrMerkleRoot.String(merkleRoot),
		AttrReceipts.Int(receipts),
	}
}

// Annotate adds attrs to the span in ctx, for values known only once the
// operation has run.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// AddSpanEvent adds an event to the span in ctx.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
