package domain

import "strings"

// Route is one scheduled train service: an ordered sequence of at least two
// city stops. Routes are immutable once loaded into the catalog.
type Route struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Origin string `json:"origin"`
	End    string `json:"destination"`
}

// Stop is a single timetable entry on a route. The sequence number is the
// sole ordering key; the time carries no date.
type Stop struct {
	RouteID string    `json:"route_id"`
	Seq     int       `json:"seq"`
	City    string    `json:"city"`
	Time    ClockTime `json:"time"`
}

// PathLeg is one hop of a connection path: ride RouteID until Hub.
type PathLeg struct {
	RouteID   string `json:"route_id"`
	RouteName string `json:"route_name"`
	Hub       string `json:"hub"`
}

// ConnectionPath is an ordered chain of legs from an origin to a destination.
// The final leg's hub is the overall destination. Paths are derived per query
// and never persisted.
type ConnectionPath struct {
	ID   string    `json:"id"`
	Hops int       `json:"hops"`
	Legs []PathLeg `json:"legs"`
}

const connPrefix = "conn_"

// NewConnectionPath derives the selector ID and hop count from the legs.
func NewConnectionPath(legs []PathLeg) ConnectionPath {
	ids := make([]string, 0, len(legs))
	for _, l := range legs {
		ids = append(ids, l.RouteID)
	}
	return ConnectionPath{
		ID:   connPrefix + strings.Join(ids, "_"),
		Hops: len(legs),
		Legs: legs,
	}
}

// Destination returns the final city reached by the path.
func (p ConnectionPath) Destination() string {
	if len(p.Legs) == 0 {
		return ""
	}
	return p.Legs[len(p.Legs)-1].Hub
}

// Hubs returns the intermediate transfer cities (all but the destination).
func (p ConnectionPath) Hubs() []string {
	if len(p.Legs) < 2 {
		return nil
	}
	hubs := make([]string, 0, len(p.Legs)-1)
	for _, l := range p.Legs[:len(p.Legs)-1] {
		hubs = append(hubs, l.Hub)
	}
	return hubs
}

func (p ConnectionPath) RouteIDs() []string {
	ids := make([]string, 0, len(p.Legs))
	for _, l := range p.Legs {
		ids = append(ids, l.RouteID)
	}
	return ids
}

// ParseConnectionID splits a "conn_<id>_<id>..." selector into route IDs.
// Returns nil when the selector is not a connection ID.
func ParseConnectionID(id string) []string {
	if !strings.HasPrefix(id, connPrefix) {
		return nil
	}
	ids := strings.Split(strings.TrimPrefix(id, connPrefix), "_")
	if len(ids) < 2 {
		return nil
	}
	return ids
}

// LayoverRequest maps a city name to the requested minimum layover in hours.
// A zero entry means the city was asked for but carries no wait requirement.
type LayoverRequest map[string]int

// Hours returns the requested layover for a city, zero when absent.
func (l LayoverRequest) Hours(city string) int {
	if l == nil {
		return 0
	}
	return l[city]
}
