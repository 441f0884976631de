package golf

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// LIVPIFOwnership is PIF's share of LIV Golf.
const LIVPIFOwnership = 0.93

// Venue hosts golf events.
type Venue struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Owner           string `json:"owner,omitempty"`
	IsTrumpProperty bool   `json:"is_trump_property"`
}

// Event is a golf tournament.
type Event struct {
	ID               string  `json:"id,omitempty"`
	Name             string  `json:"name"`
	Type             string  `json:"type,omitempty"`
	Date             string  `json:"date,omitempty"`
	Purse            float64 `json:"purse,omitempty"`
	EstimatedRevenue float64 `json:"estimated_revenue,omitempty"`
	Venue            Venue   `json:"venue"`
}

func (m *Module) hashID(id string, v any) (string, error) {
	if id != "" {
		return id, nil
	}
	h, err := m.emitter.Hasher().Hash(v)
	if err != nil {
		return "", fmt.Errorf("golf: hash record: %w", err)
	}
	return h[:12], nil
}

// RegisterEvent emits golf_event.
func (m *Module) RegisterEvent(ctx context.Context, ev Event, venue Venue) (*receipts.Receipt, error) {
	eventID, err := m.hashID(ev.ID, ev)
	if err != nil {
		return nil, err
	}
	venueID, err := m.hashID(venue.ID, venue)
	if err != nil {
		return nil, err
	}
	return m.emitter.Emit(ctx, "golf_event", map[string]any{
		"event_id":          eventID,
		"event_name":        orDefault(ev.Name, "unknown"),
		"event_type":        orDefault(ev.Type, "unknown"),
		"event_date":        orDefault(ev.Date, "unknown"),
		"venue_id":          venueID,
		"venue_name":        orDefault(venue.Name, "unknown"),
		"venue_owner":       orDefault(venue.Owner, "unknown"),
		"is_trump_property": venue.IsTrumpProperty,
		"purse_amount":      ev.Purse,
		"estimated_revenue": ev.EstimatedRevenue,
	})
}

// TrackLIVEvent emits liv_event with PIF's share of the purse.
func (m *Module) TrackLIVEvent(ctx context.Context, ev Event, pifFunding float64) (*receipts.Receipt, error) {
	eventID, err := m.hashID(ev.ID, ev)
	if err != nil {
		return nil, err
	}
	return m.emitter.Emit(ctx, "liv_event", map[string]any{
		"event_id":                    eventID,
		"event_name":                  orDefault(ev.Name, "unknown"),
		"event_date":                  orDefault(ev.Date, "unknown"),
		"venue_name":                  orDefault(ev.Venue.Name, "unknown"),
		"is_trump_property":           ev.Venue.IsTrumpProperty,
		"pif_funding":                 pifFunding,
		"pif_ownership_percentage":    LIVPIFOwnership * 100,
		"purse_amount":                ev.Purse,
		"pif_portion_of_purse":        ev.Purse * LIVPIFOwnership,
		"total_pif_investment":        m.exposure.GolfLIVPIFInvestment,
		"saudi_government_connection": true,
	})
}

// ComputeVenueRevenue splits a venue's event revenue by tour.
func (m *Module) ComputeVenueRevenue(ctx context.Context, venueID, period string, events []Event) (*receipts.Receipt, error) {
	var total, liv, pga float64
	var livN, pgaN int
	for _, ev := range events {
		total += ev.EstimatedRevenue
		switch strings.ToLower(ev.Type) {
		case "liv":
			liv += ev.EstimatedRevenue
			livN++
		case "pga":
			pga += ev.EstimatedRevenue
			pgaN++
		}
	}
	livPct := 0.0
	if total > 0 {
		livPct = liv / total * 100
	}
	return m.emitter.Emit(ctx, "venue_revenue", map[string]any{
		"venue_id":               venueID,
		"period":                 period,
		"total_events":           len(events),
		"total_revenue":          total,
		"liv_events":             livN,
		"liv_revenue":            liv,
		"liv_revenue_percentage": livPct,
		"pga_events":             pgaN,
		"pga_revenue":            pga,
		"other_events":           len(events) - livN - pgaN,
		"pif_exposure":           liv * LIVPIFOwnership,
	})
}
