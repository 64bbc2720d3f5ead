package planner

import (
	"time"

	"railplan/internal/domain"
)

// Departure is a concrete boarding opportunity: a route leaving City at
// Time on Date, with the ridden stop subsequence from City to the target.
type Departure struct {
	RouteID   string
	RouteName string
	City      string
	Time      domain.ClockTime
	Date      time.Time
	Stops     []domain.Stop
}

// NextDeparture finds the earliest train leaving city at or after desired
// that reaches target. Candidate departures carry the desired instant's date;
// a candidate whose time of day already passed rolls over to the next
// calendar day. When no single route covers city->target the path finder is
// consulted and the first hop of the best path is resolved instead. Returns
// ErrResolverExhausted only when nothing connects the two cities at all.
func (p *Planner) NextDeparture(city string, desired time.Time, target string) (Departure, error) {
	candidates := p.catalog.RoutesBetween(city, target)
	if len(candidates) == 0 {
		paths := p.FindPaths(city, target)
		if len(paths) == 0 {
			return Departure{}, ErrResolverExhausted
		}
		candidates = p.catalog.RoutesBetween(city, paths[0].Legs[0].Hub)
		if len(candidates) == 0 {
			return Departure{}, ErrResolverExhausted
		}
	}

	desiredDate := domain.DateOf(desired)
	best := -1
	var bestAt time.Time
	for i, cand := range candidates {
		at := domain.Combine(desiredDate, cand.Stops[cand.FromIdx].Time)
		if at.Before(desired) {
			at = at.AddDate(0, 0, 1)
		}
		if at.Before(desired) {
			continue
		}
		if best < 0 || at.Before(bestAt) {
			best = i
			bestAt = at
		}
	}
	if best < 0 {
		// Last-resort guarantee: the first candidate, one day out.
		best = 0
		bestAt = domain.Combine(desiredDate.AddDate(0, 0, 1), candidates[0].Stops[candidates[0].FromIdx].Time)
	}

	chosen := candidates[best]
	stops := make([]domain.Stop, chosen.ToIdx-chosen.FromIdx+1)
	copy(stops, chosen.Stops[chosen.FromIdx:chosen.ToIdx+1])

	return Departure{
		RouteID:   chosen.Route.ID,
		RouteName: chosen.Route.Name,
		City:      city,
		Time:      domain.ClockOf(bestAt),
		Date:      domain.DateOf(bestAt),
		Stops:     stops,
	}, nil
}
