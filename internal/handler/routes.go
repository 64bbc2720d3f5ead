package handler

import (
	"net/http"
	"time"

	"railplan/internal/cache"
	"railplan/internal/domain"
	"railplan/internal/planner"
)

type RouteSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Departs     string `json:"departs,omitempty"`
	Arrives     string `json:"arrives,omitempty"`
}

type RoutesResponse struct {
	Routes     []RouteSummary `json:"routes"`
	Count      int            `json:"count"`
	ServerTime time.Time      `json:"server_time"`
}

type SegmentResponse struct {
	RouteID   string `json:"route_id"`
	RouteName string `json:"route_name"`
	Hub       string `json:"hub"`
}

// ConnectionResponse describes one multi-leg path. Two-hop paths carry the
// denormalized hub/first/second fields alongside the generic segment list.
type ConnectionResponse struct {
	ID              string            `json:"id"`
	Hops            int               `json:"hops"`
	Hub             string            `json:"hub,omitempty"`
	FirstRouteID    string            `json:"first_route_id,omitempty"`
	FirstRouteName  string            `json:"first_route_name,omitempty"`
	SecondRouteID   string            `json:"second_route_id,omitempty"`
	SecondRouteName string            `json:"second_route_name,omitempty"`
	Segments        []SegmentResponse `json:"segments"`
}

type RouteSearchResponse struct {
	Origin      string               `json:"origin"`
	Destination string               `json:"destination"`
	Direct      []RouteSummary       `json:"direct"`
	Connections []ConnectionResponse `json:"connections"`
	ServerTime  time.Time            `json:"server_time"`
}

// ListRoutes serves the whole catalog, or a search between two cities when
// origin and destination query parameters are present.
func (h *CatalogHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	origin := r.URL.Query().Get("origin")
	destination := r.URL.Query().Get("destination")
	if origin != "" || destination != "" {
		if origin == "" || destination == "" {
			respondError(w, http.StatusBadRequest, "both origin and destination are required for a search")
			return
		}
		h.searchRoutes(w, r, origin, destination)
		return
	}

	var routes []domain.Route
	if h.cache != nil {
		if ok, err := h.cache.GetJSON(r.Context(), cache.KeyRoutes, &routes); err == nil && ok {
			ServerStats.IncCacheHits()
			respondJSON(w, http.StatusOK, routesResponse(routes))
			return
		}
		ServerStats.IncCacheMisses()
	}

	routes = h.catalog.AllRoutes()
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cache.KeyRoutes, routes, h.ttl); err != nil {
			h.logger.Debug("failed to cache routes", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, routesResponse(routes))
}

func routesResponse(routes []domain.Route) RoutesResponse {
	out := make([]RouteSummary, 0, len(routes))
	for _, route := range routes {
		out = append(out, RouteSummary{
			ID:          route.ID,
			Name:        route.Name,
			Origin:      route.Origin,
			Destination: route.End,
		})
	}
	return RoutesResponse{Routes: out, Count: len(out), ServerTime: time.Now()}
}

// searchRoutes returns direct routes plus connection paths. An unreachable
// pair yields empty lists, not an error.
func (h *CatalogHandler) searchRoutes(w http.ResponseWriter, r *http.Request, origin, destination string) {
	start := time.Now()

	if h.cache != nil {
		var cached RouteSearchResponse
		if ok, err := h.cache.GetJSON(r.Context(), cache.KeyConnections(origin, destination), &cached); err == nil && ok {
			ServerStats.IncCacheHits()
			cached.ServerTime = time.Now()
			respondJSON(w, http.StatusOK, cached)
			return
		}
		ServerStats.IncCacheMisses()
	}

	direct := make([]RouteSummary, 0, 4)
	for _, match := range h.catalog.RoutesBetween(origin, destination) {
		direct = append(direct, RouteSummary{
			ID:          match.Route.ID,
			Name:        match.Route.Name,
			Origin:      origin,
			Destination: destination,
			Departs:     match.Stops[match.FromIdx].Time.String(),
			Arrives:     match.Stops[match.ToIdx].Time.String(),
		})
	}

	ServerStats.IncPathSearches()
	connections := make([]ConnectionResponse, 0, 4)
	for _, path := range h.planner.FindPaths(origin, destination) {
		if path.Hops < 2 {
			// Single-leg paths duplicate the direct list.
			continue
		}
		connections = append(connections, buildConnectionResponse(path))
	}

	h.logger.Debug("route search",
		"origin", origin,
		"destination", destination,
		"direct", len(direct),
		"connections", len(connections),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	resp := RouteSearchResponse{
		Origin:      origin,
		Destination: destination,
		Direct:      direct,
		Connections: connections,
		ServerTime:  time.Now(),
	}
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cache.KeyConnections(origin, destination), resp, h.ttl); err != nil {
			h.logger.Debug("failed to cache route search", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func buildConnectionResponse(path domain.ConnectionPath) ConnectionResponse {
	segments := make([]SegmentResponse, 0, len(path.Legs))
	for _, l := range path.Legs {
		segments = append(segments, SegmentResponse{
			RouteID:   l.RouteID,
			RouteName: l.RouteName,
			Hub:       l.Hub,
		})
	}
	out := ConnectionResponse{
		ID:       path.ID,
		Hops:     path.Hops,
		Segments: segments,
	}
	if two, ok := planner.Denormalize(path); ok {
		out.Hub = two.Hub
		out.FirstRouteID = two.FirstRouteID
		out.FirstRouteName = two.FirstRouteName
		out.SecondRouteID = two.SecondRouteID
		out.SecondRouteName = two.SecondRouteName
	}
	return out
}

func (h *CatalogHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing route id")
		return
	}

	route, err := h.catalog.RouteByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	respondJSON(w, http.StatusOK, RouteSummary{
		ID:          route.ID,
		Name:        route.Name,
		Origin:      route.Origin,
		Destination: route.End,
	})
}

type StopsResponse struct {
	RouteID    string        `json:"route_id"`
	Stops      []domain.Stop `json:"stops"`
	Count      int           `json:"count"`
	ServerTime time.Time     `json:"server_time"`
}

func (h *CatalogHandler) GetRouteStops(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing route id")
		return
	}

	var stops []domain.Stop
	if h.cache != nil {
		if ok, err := h.cache.GetJSON(r.Context(), cache.KeyRouteStops(id), &stops); err == nil && ok {
			ServerStats.IncCacheHits()
			respondJSON(w, http.StatusOK, StopsResponse{RouteID: id, Stops: stops, Count: len(stops), ServerTime: time.Now()})
			return
		}
		ServerStats.IncCacheMisses()
	}

	stops, err := h.catalog.StopsFor(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cache.KeyRouteStops(id), stops, h.ttl); err != nil {
			h.logger.Debug("failed to cache stops", "route_id", id, "error", err)
		}
	}
	respondJSON(w, http.StatusOK, StopsResponse{RouteID: id, Stops: stops, Count: len(stops), ServerTime: time.Now()})
}
