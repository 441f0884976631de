// Package border scores detention, contractor, citizenship and facility
// condition records.
package border

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const (
	// ExtendedDetentionDays is the duration past which detention is extended.
	ExtendedDetentionDays = 90
	// StandardDailyCost is the per-detainee-day cost baseline in dollars.
	StandardDailyCost = 150.0
	// ExcessiveCostMultiplier flags costs this many times the baseline.
	ExcessiveCostMultiplier = 10.0
)

// Module holds the emitter and constants shared by the border functions.
type Module struct {
	emitter  *receipts.Emitter
	exposure config.Exposure
	now      func() time.Time
}

// New creates the border module.
func New(e *receipts.Emitter, cfg *config.Config) *Module {
	return &Module{
		emitter:  e,
		exposure: cfg.Exposure,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used for missing dates.
func (m *Module) WithClock(now func() time.Time) *Module {
	m.now = now
	return m
}

// Detainee is an intake record. It is only ever stored anonymized.
type Detainee struct {
	Name                string `json:"name,omitempty"`
	IntakeDate          string `json:"intake_date,omitempty"`
	Category            string `json:"category,omitempty"`
	CitizenshipVerified bool   `json:"citizenship_verified"`
}

// RegisterDetainee emits a detention receipt keyed by a hash of the record.
func (m *Module) RegisterDetainee(ctx context.Context, d Detainee, facilityID string) (*receipts.Receipt, error) {
	h, err := m.emitter.Hasher().Hash(d)
	if err != nil {
		return nil, fmt.Errorf("border: hash detainee: %w", err)
	}
	intake := d.IntakeDate
	if intake == "" {
		intake = m.now().Format(time.RFC3339)
	}
	return m.emitter.Emit(ctx, "detention", map[string]any{
		"anonymized_id":        h[:16],
		"facility_id":          facilityID,
		"intake_date":          intake,
		"category":             orDefault(d.Category, "unknown"),
		"citizenship_verified": d.CitizenshipVerified,
	})
}

// TrackDuration emits detention_duration. Zero times mean now.
func (m *Module) TrackDuration(ctx context.Context, detaineeID string, intake, current time.Time) (*receipts.Receipt, error) {
	if intake.IsZero() {
		intake = m.now()
	}
	if current.IsZero() {
		current = m.now()
	}
	days := int(math.Floor(current.Sub(intake).Hours() / 24))
	return m.emitter.Emit(ctx, "detention_duration", map[string]any{
		"detainee_id":        detaineeID,
		"intake_date":        intake.Format(time.RFC3339),
		"current_date":       current.Format(time.RFC3339),
		"duration_days":      days,
		"extended_detention": days > ExtendedDetentionDays,
	})
}

// FacilityMetrics is a point-in-time facility report.
type FacilityMetrics struct {
	Capacity              int
	CurrentPopulation     int
	StaffingRatio         float64
	MedicalStaffAvailable bool
	LastInspectionDate    string
	ViolationsCount       int
}

// MonitorFacility emits facility_monitor. Occupancy above 1 is overcrowded.
func (m *Module) MonitorFacility(ctx context.Context, facilityID string, fm FacilityMetrics) (*receipts.Receipt, error) {
	occupancy := 0.0
	if fm.Capacity > 0 {
		occupancy = float64(fm.CurrentPopulation) / float64(fm.Capacity)
	}
	return m.emitter.Emit(ctx, "facility_monitor", map[string]any{
		"facility_id":             facilityID,
		"capacity":                fm.Capacity,
		"current_population":      fm.CurrentPopulation,
		"occupancy_rate":          occupancy,
		"overcrowded":             occupancy > 1.0,
		"staffing_ratio":          fm.StaffingRatio,
		"medical_staff_available": fm.MedicalStaffAvailable,
		"last_inspection_date":    orDefault(fm.LastInspectionDate, "unknown"),
		"violations_count":        fm.ViolationsCount,
	})
}

// ComputeCostPerDetainee emits detention_cost. A cost above ten times the
// standard daily cost is excessive.
func (m *Module) ComputeCostPerDetainee(ctx context.Context, facilityID, period string, totalCost float64, population, days int) (*receipts.Receipt, error) {
	detaineeDays, perDay := 0, 0.0
	if totalCost > 0 && population > 0 && days > 0 {
		detaineeDays = population * days
		perDay = totalCost / float64(detaineeDays)
	}
	multiplier := perDay / StandardDailyCost
	return m.emitter.Emit(ctx, "detention_cost", map[string]any{
		"facility_id":           facilityID,
		"period":                period,
		"total_cost":            totalCost,
		"average_population":    population,
		"detainee_days":         detaineeDays,
		"cost_per_detainee_day": perDay,
		"standard_baseline":     StandardDailyCost,
		"cost_multiplier":       multiplier,
		"excessive_cost_flag":   multiplier > ExcessiveCostMultiplier,
		"ice_fy2025_budget":     m.exposure.BorderICEFY2025,
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
