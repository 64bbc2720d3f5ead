// Package planner holds the itinerary construction engine: connection path
// discovery over the route graph, next-departure resolution, and the
// time-aware schedule assembler that turns a chosen path plus layover
// requests into a dated event sequence.
package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluele/gcache"

	"railplan/internal/domain"
	"railplan/internal/store"
)

var (
	ErrCityNotOnRoute = errors.New("city not on route")
	ErrStopOrder      = errors.New("origin does not precede destination")
	ErrRoutesDisjoint = errors.New("routes share no transfer city")
	// ErrResolverExhausted means no route at all connects a layover city to
	// its onward target. Assembly degrades gracefully instead of aborting.
	ErrResolverExhausted = errors.New("no onward route")
)

const (
	DefaultMaxHops       = 3
	defaultPathCacheSize = 4096
	defaultPathCacheTTL  = 10 * time.Minute
)

type Options struct {
	MaxHops       int
	PathCacheSize int
	PathCacheTTL  time.Duration
}

// Planner computes itineraries against a catalog snapshot. It is stateless
// per request; the only cross-request state is the path memo cache, which is
// keyed by catalog generation and therefore safe across reloads.
type Planner struct {
	catalog   *store.Catalog
	pathCache gcache.Cache
	maxHops   int
	logger    *slog.Logger
}

func New(catalog *store.Catalog, logger *slog.Logger, opts Options) *Planner {
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	if opts.PathCacheSize <= 0 {
		opts.PathCacheSize = defaultPathCacheSize
	}
	if opts.PathCacheTTL <= 0 {
		opts.PathCacheTTL = defaultPathCacheTTL
	}
	return &Planner{
		catalog: catalog,
		pathCache: gcache.New(opts.PathCacheSize).
			LRU().
			Expiration(opts.PathCacheTTL).
			Build(),
		maxHops: opts.MaxHops,
		logger:  logger.With("component", "planner"),
	}
}

// ItineraryRequest selects a single route (one ID) or an ordered chain of
// route legs, with per-city layover requests already normalized by intake.
type ItineraryRequest struct {
	RouteIDs    []string
	Origin      string
	Destination string
	StartDate   time.Time
	Layovers    domain.LayoverRequest
}

// BuildItinerary assembles the full dated event list for a request.
func (p *Planner) BuildItinerary(req ItineraryRequest) (*domain.Itinerary, error) {
	if len(req.RouteIDs) == 0 {
		return nil, fmt.Errorf("build itinerary: %w: no route selected", store.ErrRouteNotFound)
	}

	legs, err := p.resolveLegs(req)
	if err != nil {
		return nil, fmt.Errorf("build itinerary: %w", err)
	}

	events, err := p.assemble(legs, req.StartDate, req.Layovers)
	if err != nil {
		return nil, fmt.Errorf("build itinerary: %w", err)
	}

	label := legs[0].route.Name
	for _, lg := range legs[1:] {
		label += " + " + lg.route.Name
	}

	return &domain.Itinerary{
		RouteLabel:    label,
		Events:        events,
		TotalDuration: SummarizeDuration(events),
	}, nil
}

// leg is one route traversed as part of an itinerary, restricted to the
// boarding..target sub-range of its stops.
type leg struct {
	route domain.Route
	stops []domain.Stop
	last  bool
}

func (l leg) target() string {
	return l.stops[len(l.stops)-1].City
}

// resolveLegs restricts each route in the chain to its ridden sub-range.
// For a chain, consecutive routes are joined at the earliest city of the
// current leg that the next route still serves afterwards.
func (p *Planner) resolveLegs(req ItineraryRequest) ([]leg, error) {
	boardCity := req.Origin
	legs := make([]leg, 0, len(req.RouteIDs))

	for i, routeID := range req.RouteIDs {
		route, err := p.catalog.RouteByID(routeID)
		if err != nil {
			return nil, err
		}
		stops, err := p.catalog.StopsFor(routeID)
		if err != nil {
			return nil, err
		}

		fromIdx := cityIndex(stops, boardCity, 0)
		if fromIdx < 0 {
			return nil, fmt.Errorf("%w: %q on route %q", ErrCityNotOnRoute, boardCity, routeID)
		}

		last := i == len(req.RouteIDs)-1
		var toIdx int
		if last {
			toIdx = cityIndex(stops, req.Destination, fromIdx+1)
			if toIdx < 0 {
				if cityIndex(stops, req.Destination, 0) >= 0 {
					return nil, fmt.Errorf("%w: %q -> %q on route %q", ErrStopOrder, boardCity, req.Destination, routeID)
				}
				return nil, fmt.Errorf("%w: %q on route %q", ErrCityNotOnRoute, req.Destination, routeID)
			}
		} else {
			nextStops, err := p.catalog.StopsFor(req.RouteIDs[i+1])
			if err != nil {
				return nil, err
			}
			toIdx = -1
			for j := fromIdx + 1; j < len(stops); j++ {
				if hubIdx := cityIndex(nextStops, stops[j].City, 0); hubIdx >= 0 && hubIdx < len(nextStops)-1 {
					toIdx = j
					break
				}
			}
			if toIdx < 0 {
				return nil, fmt.Errorf("%w: %q and %q", ErrRoutesDisjoint, routeID, req.RouteIDs[i+1])
			}
		}

		legs = append(legs, leg{
			route: route,
			stops: stops[fromIdx : toIdx+1],
			last:  last,
		})
		boardCity = stops[toIdx].City
	}

	return legs, nil
}

func cityIndex(stops []domain.Stop, city string, from int) int {
	for i := from; i < len(stops); i++ {
		if stops[i].City == city {
			return i
		}
	}
	return -1
}
