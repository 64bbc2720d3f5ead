package planner

import (
	"errors"
	"fmt"
	"math"
	"time"

	"railplan/internal/domain"
)

type legState int

const (
	atPlainStop legState = iota
	atLayoverStop
	atHub
	atDestination
)

// assembly carries the state threaded through one itinerary build:
// the running calendar date, the previous stop's time of day (for
// day-boundary detection within a leg), and the set of cities already
// emitted by a rebooking splice.
type assembly struct {
	planner  *Planner
	layovers domain.LayoverRequest
	consumed map[string]struct{}
	events   []domain.ScheduleEvent
	date     time.Time
	prev     domain.ClockTime
}

// assemble walks every leg in order and emits the dated event sequence.
func (p *Planner) assemble(legs []leg, startDate time.Time, layovers domain.LayoverRequest) ([]domain.ScheduleEvent, error) {
	a := &assembly{
		planner:  p,
		layovers: layovers,
		consumed: make(map[string]struct{}),
		date:     domain.DateOf(startDate),
	}

	for i := range legs {
		lg := legs[i]
		var next *leg
		if !lg.last {
			next = &legs[i+1]
		}
		if i == 0 {
			first := lg.stops[0]
			a.emit(domain.EventBoard, "Board", first.City, first.Time, lg.route.Name)
			a.prev = first.Time
		}
		// For chained legs the Board was emitted by the hub join.
		if err := a.runLeg(lg, next); err != nil {
			return nil, err
		}
	}

	return a.events, nil
}

func (a *assembly) runLeg(lg leg, next *leg) error {
	for i := 1; i < len(lg.stops); i++ {
		s := lg.stops[i]
		if _, ok := a.consumed[s.City]; ok {
			continue
		}
		// Single-wrap rule: a backwards time step within a leg means
		// midnight was crossed exactly once.
		if s.Time.Before(a.prev) {
			a.date = a.date.AddDate(0, 0, 1)
		}

		switch a.classify(lg, i) {
		case atDestination:
			a.emit(domain.EventDisembark, "Disembark", s.City, s.Time, lg.route.Name)
			a.prev = s.Time
			return nil

		case atHub:
			a.joinLegs(lg.route.Name, *next, s.City, s.Time)
			return nil

		case atLayoverStop:
			legDone, err := a.layoverStop(lg, next, s)
			if err != nil {
				return err
			}
			if legDone {
				return nil
			}

		default:
			a.emit(domain.EventStop, "Stop", s.City, s.Time, lg.route.Name)
			a.prev = s.Time
		}
	}
	return nil
}

func (a *assembly) classify(lg leg, i int) legState {
	if i == len(lg.stops)-1 {
		if lg.last {
			return atDestination
		}
		return atHub
	}
	if a.layovers.Hours(lg.stops[i].City) > 0 {
		return atLayoverStop
	}
	return atPlainStop
}

// layoverStop handles a city with a requested layover: resolve the next
// feasible departure toward the leg target, and when the wait is real,
// rebook the passenger and splice in the resolved route's remaining stops.
// The arrival and the wait collapse into a single "N hour stop" event so
// no two events share one (date, time, city) triple. Returns true when
// the splice finished the leg.
func (a *assembly) layoverStop(lg leg, next *leg, s domain.Stop) (bool, error) {
	arrival := domain.Combine(a.date, s.Time)
	desired := arrival.Add(time.Duration(a.layovers.Hours(s.City)) * time.Hour)

	dep, err := a.planner.NextDeparture(s.City, desired, lg.target())
	if errors.Is(err, ErrResolverExhausted) {
		a.planner.logger.Warn("no onward route for requested layover",
			"city", s.City,
			"target", lg.target(),
		)
		a.emit(domain.EventStop, "Stop", s.City, s.Time, lg.route.Name)
		a.prev = s.Time
		return false, nil
	}
	if err != nil {
		return false, err
	}

	actual := int(math.Round(domain.Combine(dep.Date, dep.Time).Sub(arrival).Hours()))
	if actual <= 0 {
		a.emit(domain.EventStop, "Stop", s.City, s.Time, lg.route.Name)
		a.prev = s.Time
		return false, nil
	}

	a.emit(domain.EventLayover, fmt.Sprintf("%d hour stop", actual), s.City, s.Time, lg.route.Name)
	a.prev = s.Time
	a.date = dep.Date
	a.emit(domain.EventBoard, "Board", s.City, dep.Time, dep.RouteName)
	a.prev = dep.Time

	// Splice the rebooked route's stops; its head duplicates the current city.
	for _, sp := range dep.Stops[1:] {
		if sp.Time.Before(a.prev) {
			a.date = a.date.AddDate(0, 0, 1)
		}
		if _, ok := a.consumed[sp.City]; ok {
			a.prev = sp.Time
			continue
		}
		if sp.City == lg.target() {
			if lg.last {
				a.emit(domain.EventDisembark, "Disembark", sp.City, sp.Time, dep.RouteName)
				a.prev = sp.Time
				return true, nil
			}
			a.joinLegs(dep.RouteName, *next, sp.City, sp.Time)
			return true, nil
		}
		if a.layovers.Hours(sp.City) > 0 {
			// Not consumed: the outer iteration picks this city up so its
			// own layover logic still runs.
			return false, nil
		}
		a.emit(domain.EventStop, "Stop", sp.City, sp.Time, dep.RouteName)
		a.consumed[sp.City] = struct{}{}
		a.prev = sp.Time
	}
	return false, nil
}

// joinLegs emits the transfer at a hub: a single combined disembark+layover
// event, a segment marker separating the legs, and the Board on the next
// leg at its resolved departure. A layover request at the hub pushes the
// departure to a later day while the scheduled train leaves too early.
func (a *assembly) joinLegs(currentRouteName string, next leg, hubCity string, arrivalTime domain.ClockTime) {
	arrival := domain.Combine(a.date, arrivalTime)

	depTime := next.stops[0].Time
	depDate := a.date
	if depTime.Before(arrivalTime) {
		depDate = depDate.AddDate(0, 0, 1)
	}
	departure := domain.Combine(depDate, depTime)

	if hrs := a.layovers.Hours(hubCity); hrs > 0 {
		required := arrival.Add(time.Duration(hrs) * time.Hour)
		for departure.Before(required) {
			departure = departure.AddDate(0, 0, 1)
		}
	}

	// A same-minute connection gets no wait marker; the Board alone
	// records the transfer, keeping the (date, time, city) triple unique.
	if !departure.Equal(arrival) {
		hours := int(math.Round(departure.Sub(arrival).Hours()))
		a.emit(domain.EventLayover, fmt.Sprintf("Disembark - %d hour layover", hours), hubCity, arrivalTime, currentRouteName)
	}
	a.events = append(a.events, domain.ScheduleEvent{Kind: domain.EventSegment})

	a.date = domain.DateOf(departure)
	a.emit(domain.EventBoard, "Board", hubCity, domain.ClockOf(departure), next.route.Name)
	a.prev = domain.ClockOf(departure)
}

func (a *assembly) emit(kind domain.EventKind, label, city string, at domain.ClockTime, routeName string) {
	a.events = append(a.events, domain.ScheduleEvent{
		City:      city,
		Kind:      kind,
		Label:     label,
		Time:      at,
		Date:      a.date,
		RouteName: routeName,
	})
}
