package planner

import (
	"fmt"
	"slices"
	"sort"

	"railplan/internal/domain"
)

// FindPaths discovers connection paths from origin to destination by
// breadth-first search over the catalog's city graph. A path is accepted once
// it reaches the destination with at least one leg; search depth is bounded
// by the hop limit and a visited set keyed by (city, depth). Results come
// back sorted by ascending hop count, discovery order within a layer, which
// is deterministic for a fixed catalog. An unreachable pair yields an empty
// slice, never an error.
func (p *Planner) FindPaths(origin, destination string) []domain.ConnectionPath {
	if origin == destination {
		return nil
	}

	cacheKey := fmt.Sprintf("%d|%s|%s", p.catalog.Generation(), origin, destination)
	if cached, err := p.pathCache.Get(cacheKey); err == nil {
		if paths, ok := cached.([]domain.ConnectionPath); ok {
			return paths
		}
	}

	paths := p.searchPaths(origin, destination)
	if err := p.pathCache.Set(cacheKey, paths); err != nil {
		p.logger.Warn("path cache set failed", "key", cacheKey, "error", err)
	}
	return paths
}

type searchState struct {
	city string
	legs []domain.PathLeg
}

type visitKey struct {
	city  string
	depth int
}

func (p *Planner) searchPaths(origin, destination string) []domain.ConnectionPath {
	visited := map[visitKey]struct{}{{city: origin, depth: 0}: {}}
	queue := []searchState{{city: origin}}
	var found []domain.ConnectionPath

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		depth := len(cur.legs)
		if depth >= p.maxHops {
			continue
		}

		for _, edge := range p.catalog.Edges(cur.city) {
			legs := append(slices.Clone(cur.legs), domain.PathLeg{
				RouteID:   edge.RouteID,
				RouteName: edge.RouteName,
				Hub:       edge.To,
			})
			if edge.To == destination {
				found = append(found, domain.NewConnectionPath(legs))
				continue
			}
			key := visitKey{city: edge.To, depth: depth + 1}
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}
			queue = append(queue, searchState{city: edge.To, legs: legs})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Hops < found[j].Hops
	})
	return found
}

// TwoHopConnection is the denormalized shape for single-transfer paths.
type TwoHopConnection struct {
	ID              string `json:"id"`
	Hub             string `json:"hub"`
	FirstRouteID    string `json:"first_route_id"`
	FirstRouteName  string `json:"first_route_name"`
	SecondRouteID   string `json:"second_route_id"`
	SecondRouteName string `json:"second_route_name"`
}

// Denormalize flattens a two-hop path; ok is false for other lengths.
func Denormalize(path domain.ConnectionPath) (TwoHopConnection, bool) {
	if path.Hops != 2 {
		return TwoHopConnection{}, false
	}
	return TwoHopConnection{
		ID:              path.ID,
		Hub:             path.Legs[0].Hub,
		FirstRouteID:    path.Legs[0].RouteID,
		FirstRouteName:  path.Legs[0].RouteName,
		SecondRouteID:   path.Legs[1].RouteID,
		SecondRouteName: path.Legs[1].RouteName,
	}, true
}
