// Package loop is the cross-domain correlator.
//
// A Correlator is stateless between calls: every entry point takes the
// accumulated receipt list from the caller, reads it without mutation and
// emits one summary receipt through its Emitter. Malformed payload fields
// default to zero or empty and never abort a pass. StopRule errors raised
// by the emitter are returned unchanged.
package loop

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/domain"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
	"github.com/northstaraokeystone/trumpproof/pkg/violation"
)

// Tracker wraps an operation in a span. observability.Provider satisfies it.
type Tracker interface {
	TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error))
}

type noopTracker struct{}

func (noopTracker) TrackOperation(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// Correlator runs the sense/analyze cycle, the violation harvest and the
// cross-domain pattern detectors.
type Correlator struct {
	emitter    *receipts.Emitter
	classifier *domain.Classifier
	priority   []string
	analyze    *violation.Detector
	harvest    *violation.Detector

	targetCycle time.Duration
	harvestDays int
	exposure    config.Exposure
	thresholds  config.Thresholds

	clock   func() time.Time
	tracker Tracker
	logger  *slog.Logger
}

// New creates a correlator emitting through e, configured from cfg.
func New(e *receipts.Emitter, cfg *config.Config) *Correlator {
	priority := cfg.ModulePriority
	if len(priority) == 0 {
		priority = domain.Priority
	}
	return &Correlator{
		emitter:     e,
		classifier:  domain.Default(),
		priority:    priority,
		analyze:     violation.NewDetector(violation.PriorityFlags),
		harvest:     violation.NewHarvestDetector(),
		targetCycle: time.Duration(cfg.LoopCycleSeconds) * time.Second,
		harvestDays: cfg.HarvestPeriodDays,
		exposure:    cfg.Exposure,
		thresholds:  cfg.Thresholds,
		clock:       time.Now,
		tracker:     noopTracker{},
		logger:      slog.Default().With("component", "loop"),
	}
}

// WithClock overrides clock for testing.
func (c *Correlator) WithClock(clock func() time.Time) *Correlator {
	c.clock = clock
	return c
}

// WithTracker attaches a span tracker.
func (c *Correlator) WithTracker(t Tracker) *Correlator {
	if t != nil {
		c.tracker = t
	}
	return c
}

// WithClassifier replaces the shared domain classifier.
func (c *Correlator) WithClassifier(cl *domain.Classifier) *Correlator {
	c.classifier = cl
	return c
}

// WithHarvestDetector replaces the harvest violation detector, for example
// one carrying CEL rules.
func (c *Correlator) WithHarvestDetector(d *violation.Detector) *Correlator {
	c.harvest = d
	return c
}
