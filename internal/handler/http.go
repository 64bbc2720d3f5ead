package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"railplan/internal/cache"
	"railplan/internal/planner"
	"railplan/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// CatalogHandler serves the read-only route network: cities, routes, stops
// and connection search.
type CatalogHandler struct {
	catalog *store.Catalog
	planner *planner.Planner
	cache   *cache.RedisCache // nil when redis is disabled
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *store.Catalog, p *planner.Planner, redisCache *cache.RedisCache, ttl time.Duration, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		planner: p,
		cache:   redisCache,
		ttl:     ttl,
		logger:  logger.With("handler", "catalog"),
	}
}

type CitiesResponse struct {
	Cities     []string  `json:"cities"`
	Count      int       `json:"count"`
	ServerTime time.Time `json:"server_time"`
}

func (h *CatalogHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	var cities []string
	if h.cache != nil {
		if ok, err := h.cache.GetJSON(r.Context(), cache.KeyCities, &cities); err == nil && ok {
			ServerStats.IncCacheHits()
			respondJSON(w, http.StatusOK, CitiesResponse{Cities: cities, Count: len(cities), ServerTime: time.Now()})
			return
		}
		ServerStats.IncCacheMisses()
	}

	cities = h.catalog.Cities()
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cache.KeyCities, cities, h.ttl); err != nil {
			h.logger.Debug("failed to cache cities", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, CitiesResponse{Cities: cities, Count: len(cities), ServerTime: time.Now()})
}
