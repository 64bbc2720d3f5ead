package domain

import "time"

// EventKind classifies itinerary events
type EventKind string

const (
	EventBoard     EventKind = "board"
	EventStop      EventKind = "stop"
	EventDisembark EventKind = "disembark"
	EventLayover   EventKind = "layover"
	// EventSegment is a marker separating the legs of a connection in the
	// combined output. It carries no city, time or date.
	EventSegment EventKind = "segment"
)

// ScheduleEvent is one dated entry of an itinerary.
type ScheduleEvent struct {
	City      string
	Kind      EventKind
	Label     string
	Time      ClockTime
	Date      time.Time
	RouteName string
}

// Valid reports whether the event carries a real date and time. Segment
// markers are not valid events and are excluded from duration math.
func (e ScheduleEvent) Valid() bool {
	return e.Kind != EventSegment && !e.Date.IsZero()
}

// When returns the combined instant of the event.
func (e ScheduleEvent) When() time.Time {
	return Combine(e.Date, e.Time)
}

// Itinerary is the final ordered event sequence for one planned trip.
// It is constructed fresh per request and never mutated afterwards.
type Itinerary struct {
	RouteLabel    string
	Events        []ScheduleEvent
	TotalDuration string
}
