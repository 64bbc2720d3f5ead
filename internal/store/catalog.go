package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"railplan/internal/domain"
)

var ErrRouteNotFound = errors.New("route not found")

// Edge is one directed hop of the city graph: board RouteID at From and ride
// to To, where From's stop index precedes To's. Every later stop of a route
// produces an edge, so hubs that are intermediate stops stay reachable.
type Edge struct {
	RouteID   string
	RouteName string
	From      string
	FromSeq   int
	To        string
	ToSeq     int
}

// RouteStops pairs a route with its ordered stops. FromIdx and ToIdx are set
// by RoutesBetween to the queried cities' positions in Stops.
type RouteStops struct {
	Route   domain.Route
	Stops   []domain.Stop
	FromIdx int
	ToIdx   int
}

type Stats struct {
	RoutesCount int
	StopsCount  int
	CitiesCount int
	IsLoaded    bool
	LastUpdate  time.Time
	Generation  uint64
}

// Catalog is the immutable snapshot of all routes and stops. Replace swaps
// the whole dataset atomically; readers are unlimited and lock-free between
// swaps apart from the RLock.
type Catalog struct {
	mu         sync.RWMutex
	routes     map[string]domain.Route
	routeIDs   []string
	stops      map[string][]domain.Stop
	adjacency  map[string][]Edge
	cities     []string
	loaded     bool
	lastUpdate time.Time
	generation uint64
}

func New() *Catalog {
	return &Catalog{
		routes:    make(map[string]domain.Route),
		stops:     make(map[string][]domain.Stop),
		adjacency: make(map[string][]Edge),
	}
}

// Replace installs a new snapshot and rebuilds the adjacency index and city
// list. The index is built once per load so path queries are plain graph
// traversals rather than repeated timetable scans.
func (c *Catalog) Replace(routes map[string]domain.Route, stops map[string][]domain.Stop) {
	routeIDs := make([]string, 0, len(routes))
	for id := range routes {
		routeIDs = append(routeIDs, id)
	}
	sort.Strings(routeIDs)

	adjacency := make(map[string][]Edge)
	citySet := make(map[string]struct{})
	for _, id := range routeIDs {
		ss := stops[id]
		name := routes[id].Name
		for i := 0; i < len(ss); i++ {
			citySet[ss[i].City] = struct{}{}
			for j := i + 1; j < len(ss); j++ {
				adjacency[ss[i].City] = append(adjacency[ss[i].City], Edge{
					RouteID:   id,
					RouteName: name,
					From:      ss[i].City,
					FromSeq:   i,
					To:        ss[j].City,
					ToSeq:     j,
				})
			}
		}
	}

	cities := make([]string, 0, len(citySet))
	for city := range citySet {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = routes
	c.routeIDs = routeIDs
	c.stops = stops
	c.adjacency = adjacency
	c.cities = cities
	c.loaded = true
	c.lastUpdate = time.Now()
	c.generation++
}

func (c *Catalog) RouteByID(id string) (domain.Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	route, ok := c.routes[id]
	if !ok {
		return domain.Route{}, fmt.Errorf("%w: %q", ErrRouteNotFound, id)
	}
	return route, nil
}

// StopsFor returns the route's stops in sequence order.
func (c *Catalog) StopsFor(routeID string) ([]domain.Stop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ss, ok := c.stops[routeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRouteNotFound, routeID)
	}
	out := make([]domain.Stop, len(ss))
	copy(out, ss)
	return out, nil
}

// AllRoutes returns every route ordered by ID.
func (c *Catalog) AllRoutes() []domain.Route {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Route, 0, len(c.routeIDs))
	for _, id := range c.routeIDs {
		out = append(out, c.routes[id])
	}
	return out
}

// RoutesBetween returns every route stopping at cityA before cityB, ordered
// by departure time at cityA, then route ID. The first occurrence of cityA
// anchors the match; cityB must appear at a strictly later sequence index.
func (c *Catalog) RoutesBetween(cityA, cityB string) []RouteStops {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []RouteStops
	for _, id := range c.routeIDs {
		ss := c.stops[id]
		fromIdx := -1
		for i, s := range ss {
			if s.City == cityA {
				fromIdx = i
				break
			}
		}
		if fromIdx < 0 {
			continue
		}
		toIdx := -1
		for i := fromIdx + 1; i < len(ss); i++ {
			if ss[i].City == cityB {
				toIdx = i
				break
			}
		}
		if toIdx < 0 {
			continue
		}

		stops := make([]domain.Stop, len(ss))
		copy(stops, ss)
		out = append(out, RouteStops{
			Route:   c.routes[id],
			Stops:   stops,
			FromIdx: fromIdx,
			ToIdx:   toIdx,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti := out[i].Stops[out[i].FromIdx].Time
		tj := out[j].Stops[out[j].FromIdx].Time
		if ti != tj {
			return ti < tj
		}
		return out[i].Route.ID < out[j].Route.ID
	})
	return out
}

// Edges returns the outgoing graph edges for a city.
func (c *Catalog) Edges(city string) []Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	es := c.adjacency[city]
	out := make([]Edge, len(es))
	copy(out, es)
	return out
}

// Cities returns all city names, sorted.
func (c *Catalog) Cities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.cities))
	copy(out, c.cities)
	return out
}

func (c *Catalog) HasCity(city string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := sort.SearchStrings(c.cities, city)
	return i < len(c.cities) && c.cities[i] == city
}

func (c *Catalog) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Generation increments on every Replace; cached derived data keyed by
// generation goes stale automatically on reload.
func (c *Catalog) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Catalog) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stopsCount := 0
	for _, ss := range c.stops {
		stopsCount += len(ss)
	}
	return Stats{
		RoutesCount: len(c.routes),
		StopsCount:  stopsCount,
		CitiesCount: len(c.cities),
		IsLoaded:    c.loaded,
		LastUpdate:  c.lastUpdate,
		Generation:  c.generation,
	}
}
