package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/northstaraokeystone/trumpproof/pkg/domain"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Metrics holds the Prometheus counters for the receipt stream. It
// implements receipts.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ReceiptsEmitted *prometheus.CounterVec
	Anomalies       prometheus.Counter
	StopRules       *prometheus.CounterVec
	Cycles          prometheus.Counter
	Scenarios       *prometheus.CounterVec
}

// NewMetrics creates the counters on a private registry so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ReceiptsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trumpproof_receipts_emitted_total",
			Help: "Receipts appended to the stream, by domain",
		}, []string{"domain"}),
		Anomalies: factory.NewCounter(prometheus.CounterOpts{
			Name: "trumpproof_anomalies_total",
			Help: "Anomaly receipts emitted",
		}),
		StopRules: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trumpproof_stoprules_total",
			Help: "StopRules fired, by metric",
		}, []string{"metric"}),
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "trumpproof_loop_cycles_total",
			Help: "Correlator cycles completed",
		}),
		Scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trumpproof_scenarios_total",
			Help: "Simulation scenarios run, by name and result",
		}, []string{"scenario", "result"}),
	}
}

// ReceiptEmitted counts one receipt under its inferred domain.
func (m *Metrics) ReceiptEmitted(receiptType string) {
	m.ReceiptsEmitted.WithLabelValues(domain.Infer(receiptType)).Inc()
	if receiptType == receipts.AnomalyType {
		m.Anomalies.Inc()
	}
}

// StopRuleFired counts one StopRule.
func (m *Metrics) StopRuleFired(metric string) {
	m.StopRules.WithLabelValues(metric).Inc()
}

// CycleCompleted counts one correlator cycle.
func (m *Metrics) CycleCompleted() {
	m.Cycles.Inc()
}

// ScenarioCompleted counts one simulation run.
func (m *Metrics) ScenarioCompleted(name string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	m.Scenarios.WithLabelValues(name, result).Inc()
}

// Gatherer exposes the registry for scraping or tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteToTextfile writes the counters in the node_exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
