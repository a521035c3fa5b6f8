package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"go.uber.org/zap"
)

const (
	trackingURL    = "https://www.cttexpress.com/localizador-de-envios/?sc="
	lineTimeLayout = "2006-01-02 15:04:05"
)

// ErrStateNotRecognized is returned when the derived state is outside the
// recognized set of the gateway.
var ErrStateNotRecognized = errors.New("delivery state not recognized")

// StateChange is published for every tracking state update.
type StateChange struct {
	AccountID    string
	Protocol     shipper.Protocol
	TrackingCode string
	State        shipper.DeliveryState
	StatusCode   string
	Description  string
	EventTime    *time.Time
}

// StateSink receives tracking state updates.
type StateSink interface {
	Publish(ctx context.Context, change StateChange) error
}

// TrackingUpdate is the result of UpdateTrackingState.
type TrackingUpdate struct {
	TrackingCode string
	// History holds one display line per event, oldest first.
	History []string
	// Current is the display line of the latest event.
	Current string
	State   shipper.DeliveryState
	Events  []shipper.TrackingEvent
}

// HistoryText joins the history lines with newlines.
func (u *TrackingUpdate) HistoryText() string {
	return strings.Join(u.History, "\n")
}

// TrackingLink returns the public tracking page of a code.
func (g *Gateway) TrackingLink(code string) string {
	return TrackingLink(code)
}

// TrackingLink returns the public tracking page of a code.
func TrackingLink(code string) string {
	return trackingURL + code
}

// UpdateTrackingState fetches the history of the last code of trackingRef and
// derives its delivery state from the chronologically last event. It returns
// nil for an empty ref.
func (g *Gateway) UpdateTrackingState(ctx context.Context, accountID, trackingRef string) (*TrackingUpdate, error) {
	codes := TrackingCodes(trackingRef)
	if len(codes) == 0 {
		return nil, nil
	}
	code := codes[len(codes)-1]

	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return nil, err
	}

	var update *TrackingUpdate
	err = g.observe(ctx, "tracking", account, func(ctx context.Context) error {
		events, err := adapter.GetTracking(ctx, code)
		if err != nil {
			return err
		}
		g.debug("Tracking events", zap.String("tracking_code", code), zap.Int("count", len(events)))

		update = g.buildUpdate(account, code, events)
		if len(events) == 0 {
			return nil
		}
		if !g.recognized[update.State] {
			return fmt.Errorf("%w: %s", ErrStateNotRecognized, update.State)
		}

		if g.sink != nil {
			last := update.Events[len(update.Events)-1]
			change := StateChange{
				AccountID:    account.ID,
				Protocol:     account.Protocol,
				TrackingCode: code,
				State:        update.State,
				StatusCode:   last.StatusCode,
				Description:  last.StatusDescription,
				EventTime:    last.Time,
			}
			if err := g.sink.Publish(ctx, change); err != nil {
				g.logger.Warn("Publishing state change failed",
					zap.String("tracking_code", code),
					zap.Error(err),
				)
			}
		}
		return nil
	})
	return update, err
}

func (g *Gateway) buildUpdate(account *shipper.CarrierAccount, code string, events []shipper.TrackingEvent) *TrackingUpdate {
	sorted := SortEvents(events)
	update := &TrackingUpdate{
		TrackingCode: code,
		History:      make([]string, len(sorted)),
		Events:       sorted,
	}
	for i, e := range sorted {
		update.History[i] = FormatEvent(e)
	}
	if len(sorted) > 0 {
		last := sorted[len(sorted)-1]
		update.Current = update.History[len(sorted)-1]
		update.State = g.translator.Translate(account.Protocol, last.StatusCode)
	}
	return update
}

// SortEvents returns the events in chronological order. When any event has
// no time the carrier order is kept, since the untimed event cannot be placed.
func SortEvents(events []shipper.TrackingEvent) []shipper.TrackingEvent {
	sorted := append([]shipper.TrackingEvent(nil), events...)
	for _, e := range sorted {
		if e.Time == nil {
			return sorted
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(*sorted[j].Time)
	})
	return sorted
}

// FormatEvent renders an event as a history line:
// "YYYY-MM-DD HH:MM:SS - [code] description (incident) - incident description".
func FormatEvent(e shipper.TrackingEvent) string {
	when := "n/a"
	if e.Time != nil {
		when = e.Time.Format(lineTimeLayout)
	}
	line := fmt.Sprintf("%s - [%s] %s", when, e.StatusCode, e.StatusDescription)
	if e.IncidentCode != "" {
		line += fmt.Sprintf(" (%s) - %s", e.IncidentCode, e.IncidentDescription)
	}
	return line
}
