package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"railplan/internal/ingestor"
	"railplan/internal/store"
)

type HealthHandler struct {
	ingestor *ingestor.Ingestor
	catalog  *store.Catalog
}

func NewHealthHandler(ing *ingestor.Ingestor, catalog *store.Catalog) *HealthHandler {
	return &HealthHandler{
		ingestor: ing,
		catalog:  catalog,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	RouteCount int       `json:"route_count"`
	CityCount  int       `json:"city_count"`
	ServerTime time.Time `json:"server_time"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.ingestor.IsReady() && h.catalog.IsLoaded()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	stats := h.catalog.GetStats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:      ready,
		RouteCount: stats.RoutesCount,
		CityCount:  stats.CitiesCount,
		ServerTime: time.Now(),
	})
}
