// Package sim is the Monte Carlo scenario driver. Each scenario runs a
// number of cycles in which every configured module emits synthetic
// receipts through a real Emitter. It is the only place a StopRule is
// caught: the failure is recorded against its module and cycle and the run
// moves on to the next unit of work.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
	"github.com/northstaraokeystone/trumpproof/pkg/domain"
	"github.com/northstaraokeystone/trumpproof/pkg/loop"
	"github.com/northstaraokeystone/trumpproof/pkg/observability"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
	"github.com/northstaraokeystone/trumpproof/pkg/violation"
)

// Scenario names a predefined simulation.
type Scenario string

const (
	Baseline             Scenario = "BASELINE"
	TariffSCOTUS         Scenario = "TARIFF_SCOTUS"
	BorderAccountability Scenario = "BORDER_ACCOUNTABILITY"
	GulfReturns          Scenario = "GULF_RETURNS"
	CrossDomainPIF       Scenario = "CROSS_DOMAIN_PIF"
	Godel                Scenario = "GODEL"
)

// Scenarios lists every predefined scenario in run order.
var Scenarios = []Scenario{Baseline, TariffSCOTUS, BorderAccountability, GulfReturns, CrossDomainPIF, Godel}

// Injectable events.
const (
	EventDeath            = "death_event"
	EventCitizenDetention = "citizen_detention"
)

// MinPIFDomains is the CROSS_DOMAIN_PIF pass threshold.
const MinPIFDomains = 4

// DefaultSeed seeds predefined scenarios unless the caller supplies one.
const DefaultSeed int64 = 1

// ErrUnknownScenario is returned for names outside Scenarios.
var ErrUnknownScenario = errors.New("unknown scenario")

// Config describes one simulation run.
type Config struct {
	Scenario     Scenario
	Cycles       int
	Modules      []string
	InjectEvents []string
	Seed         int64

	// CyclesPerSecond throttles the run when positive.
	CyclesPerSecond float64
}

func (c Config) injects(event string) bool {
	for _, e := range c.InjectEvents {
		if e == event {
			return true
		}
	}
	return false
}

// ParseScenario resolves a scenario name. GÖDEL is accepted for GODEL.
func ParseScenario(name string) (Scenario, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "GÖDEL" {
		n = string(Godel)
	}
	for _, s := range Scenarios {
		if string(s) == n {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownScenario, name)
}

// ScenarioConfig returns the predefined configuration for s.
func ScenarioConfig(s Scenario) (Config, error) {
	all := append([]string(nil), domain.Modules...)
	switch s {
	case Baseline:
		return Config{Scenario: s, Cycles: 1000, Modules: all, Seed: DefaultSeed}, nil
	case TariffSCOTUS:
		return Config{Scenario: s, Cycles: 500, Modules: []string{domain.Tariff}, Seed: DefaultSeed}, nil
	case BorderAccountability:
		return Config{
			Scenario:     s,
			Cycles:       500,
			Modules:      []string{domain.Border},
			InjectEvents: []string{EventDeath, EventCitizenDetention},
			Seed:         DefaultSeed,
		}, nil
	case GulfReturns:
		return Config{Scenario: s, Cycles: 500, Modules: []string{domain.Gulf}, Seed: DefaultSeed}, nil
	case CrossDomainPIF:
		return Config{Scenario: s, Cycles: 1000, Modules: all, Seed: DefaultSeed}, nil
	case Godel:
		return Config{Scenario: s, Cycles: 100, Modules: all, Seed: DefaultSeed}, nil
	}
	return Config{}, fmt.Errorf("%w: %s", ErrUnknownScenario, s)
}

// Failure records a StopRule caught for one module in one cycle.
type Failure struct {
	Type   string `json:"type"`
	Module string `json:"module"`
	Cycle  int    `json:"cycle"`
	Error  string `json:"error"`
}

// Result is the outcome of one run.
type Result struct {
	RunID            string
	Scenario         Scenario
	Cycles           int
	Receipts         []*receipts.Receipt
	Violations       []*receipts.Receipt
	Anomalies        []*receipts.Receipt
	StopRules        []Failure
	PIFDomains       []string
	PIFTotalExposure float64

	// CycleReceipt is the loop_cycle receipt of the correlator pass over
	// the whole run.
	CycleReceipt *receipts.Receipt
	Passed       bool
	Message      string
}

// ViolationCount counts flagged receipts and caught StopRules.
func (r *Result) ViolationCount() int { return len(r.Violations) + len(r.StopRules) }

// Driver runs scenarios.
type Driver struct {
	cfg      *config.Config
	tracker  loop.Tracker
	metrics  *observability.Metrics
	now      func() time.Time
	newRunID func() string
	logger   *slog.Logger
	rate     float64
}

// NewDriver creates a driver using cfg for tenant, hash and correlator
// settings.
func NewDriver(cfg *config.Config) *Driver {
	return &Driver{
		cfg:      cfg,
		now:      time.Now,
		newRunID: uuid.NewString,
		logger:   slog.Default().With("component", "sim"),
	}
}

// WithTracker wraps each run in a span.
func (d *Driver) WithTracker(t loop.Tracker) *Driver {
	d.tracker = t
	return d
}

// WithMetrics counts receipts, StopRules and runs.
func (d *Driver) WithMetrics(m *observability.Metrics) *Driver {
	d.metrics = m
	return d
}

// WithClock sets the start time of simulated receipts.
func (d *Driver) WithClock(clock func() time.Time) *Driver {
	d.now = clock
	return d
}

// WithRate caps predefined scenarios at cyclesPerSecond. Zero leaves them
// unthrottled.
func (d *Driver) WithRate(cyclesPerSecond float64) *Driver {
	d.rate = cyclesPerSecond
	return d
}

// RunScenario runs a predefined scenario. A non-zero seed replaces the
// default.
func (d *Driver) RunScenario(ctx context.Context, s Scenario, seed int64) (*Result, error) {
	sc, err := ScenarioConfig(s)
	if err != nil {
		return nil, err
	}
	if seed != 0 {
		sc.Seed = seed
	}
	if d.rate > 0 {
		sc.CyclesPerSecond = d.rate
	}
	return d.Run(ctx, sc)
}

// RunAll runs every predefined scenario concurrently, each with its own
// emitter and sink. Results follow Scenarios order.
func (d *Driver) RunAll(ctx context.Context, seed int64) ([]*Result, error) {
	results := make([]*Result, len(Scenarios))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range Scenarios {
		g.Go(func() error {
			r, err := d.RunScenario(ctx, s, seed)
			if err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// recoverable reports whether err is a StopRule the run records and moves
// past. A StopRule whose anomaly could not be written is a sink failure
// first: the stream is broken and the run must stop.
func recoverable(err error) bool {
	if errors.Is(err, receipts.ErrSinkWrite) {
		return false
	}
	var stop *receipts.StopRuleError
	return errors.As(err, &stop)
}

// Run executes sc. Errors other than StopRules abort the run.
func (d *Driver) Run(ctx context.Context, sc Config) (_ *Result, err error) {
	if sc.Cycles < 0 {
		return nil, fmt.Errorf("sim: negative cycle count %d", sc.Cycles)
	}
	if d.tracker != nil {
		var done func(error)
		ctx, done = d.tracker.TrackOperation(ctx, "sim.scenario",
			observability.ScenarioOperation(string(sc.Scenario), sc.Cycles, sc.Seed)...)
		defer func() { done(err) }()
	}

	hasher := crypto.NewDualHasher(d.cfg.HashSecondary)
	if sc.Scenario == Godel {
		hasher = crypto.NewDegradedHasher()
	}

	step := time.Duration(d.cfg.LoopCycleSeconds) * time.Second
	start := d.now().UTC()
	var cycle int
	sink := receipts.NewMemorySink()
	e := receipts.NewEmitter(sink).
		WithTenant(d.cfg.TenantID).
		WithHasher(hasher).
		WithClock(func() time.Time { return start.Add(time.Duration(cycle) * step) })
	if d.metrics != nil {
		e = e.WithObserver(d.metrics)
	}

	run := &runner{
		sc:       sc,
		emitter:  e,
		rng:      rand.New(rand.NewSource(sc.Seed)), //nolint:gosec // reproducible simulation, not security
		exposure: d.cfg.Exposure,
	}

	var limiter *rate.Limiter
	if sc.CyclesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(sc.CyclesPerSecond), 1)
	}

	res := &Result{
		RunID:            d.newRunID(),
		Scenario:         sc.Scenario,
		Cycles:           sc.Cycles,
		PIFTotalExposure: d.cfg.Exposure.PIFTotal(),
	}

	for cycle = 0; cycle < sc.Cycles; cycle++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, module := range sc.Modules {
			err := run.module(ctx, module, cycle)
			if err == nil {
				continue
			}
			if !recoverable(err) {
				return nil, fmt.Errorf("sim %s: cycle %d: %s: %w", sc.Scenario, cycle, module, err)
			}
			res.StopRules = append(res.StopRules, Failure{
				Type:   "stoprule",
				Module: module,
				Cycle:  cycle,
				Error:  err.Error(),
			})
			observability.AddSpanEvent(ctx, "stoprule",
				observability.AttrModule.String(module),
				observability.AttrCycles.Int(cycle),
			)
		}
	}

	res.Receipts = sink.Receipts()
	res.Anomalies = anomalies(res.Receipts)
	res.Violations = violation.NewDetector(violation.SimFlags).Filter(res.Receipts)
	res.PIFDomains = pifDomains(res.Receipts)

	correlator := loop.New(e, d.cfg)
	if d.tracker != nil {
		correlator = correlator.WithTracker(d.tracker)
	}
	res.CycleReceipt, err = correlator.RunCycle(ctx, res.Receipts, res.RunID)
	if err != nil {
		return nil, fmt.Errorf("sim %s: final cycle: %w", sc.Scenario, err)
	}

	res.Passed, res.Message = checkPassCriteria(res)

	if d.metrics != nil {
		d.metrics.CycleCompleted()
		d.metrics.ScenarioCompleted(string(sc.Scenario), res.Passed)
	}
	d.logger.InfoContext(ctx, "scenario complete",
		"scenario", sc.Scenario,
		"run_id", res.RunID,
		"receipts", len(res.Receipts),
		"violations", res.ViolationCount(),
		"stoprules", len(res.StopRules),
		"passed", res.Passed,
	)
	return res, nil
}

func anomalies(rs []*receipts.Receipt) []*receipts.Receipt {
	var out []*receipts.Receipt
	for _, r := range rs {
		if r.Type == receipts.AnomalyType {
			out = append(out, r)
		}
	}
	return out
}

// pifDomains returns the sorted scoring domains that produced a PIF
// connected receipt.
func pifDomains(rs []*receipts.Receipt) []string {
	set := map[string]struct{}{}
	for _, r := range rs {
		if !strings.Contains(strings.ToLower(r.Type), "pif") && !r.Truthy("is_pif_connected") {
			continue
		}
		d := domain.Default().InferReceipt(r)
		if d == domain.Unknown || d == domain.Loop {
			continue
		}
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func countType(rs []*receipts.Receipt, match func(string) bool) int {
	n := 0
	for _, r := range rs {
		if match(r.Type) {
			n++
		}
	}
	return n
}

func checkPassCriteria(res *Result) (bool, string) {
	switch res.Scenario {
	case Baseline:
		if n := len(res.StopRules); n > 0 {
			return false, fmt.Sprintf("FAIL: %d stoprule violations", n)
		}
		return true, "PASS: All cycles complete, zero stoprule violations"

	case TariffSCOTUS:
		if countType(res.Receipts, func(t string) bool { return t == "refund_liability" }) == 0 {
			return false, "FAIL: No refund liability computed"
		}
		return true, "PASS: Refund liability computed, exemption tracking functional"

	case BorderAccountability:
		detentions := countType(res.Receipts, func(t string) bool { return strings.Contains(t, "detention") })
		citizens := countType(res.Receipts, func(t string) bool { return strings.Contains(t, "citizen") })
		if detentions == 0 {
			return false, "FAIL: No detention tracking"
		}
		return true, fmt.Sprintf("PASS: Detention tracking (%d), citizenship verification (%d)", detentions, citizens)

	case GulfReturns:
		if countType(res.Receipts, func(t string) bool { return t == "fee_ratio" }) == 0 {
			return false, "FAIL: No fee ratio computed"
		}
		zero := false
		for _, r := range res.Receipts {
			if r.Truthy("is_zero_return") || (r.Has("returns_generated") && r.Number("returns_generated") == 0) {
				zero = true
				break
			}
		}
		return true, fmt.Sprintf("PASS: Fee ratio computed, zero-return handled: %t", zero)

	case CrossDomainPIF:
		if n := len(res.PIFDomains); n < MinPIFDomains {
			return false, fmt.Sprintf("FAIL: PIF in only %d domains (need ≥%d)", n, MinPIFDomains)
		}
		return true, fmt.Sprintf("PASS: PIF connections in %d domains", len(res.PIFDomains))

	case Godel:
		return true, fmt.Sprintf("PASS: Graceful degradation achieved (%d stoprules recorded)", len(res.StopRules))
	}
	return false, fmt.Sprintf("Unknown scenario: %s", res.Scenario)
}
