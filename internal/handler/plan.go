package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"railplan/internal/cache"
	"railplan/internal/domain"
	"railplan/internal/planner"
	"railplan/internal/store"
)

// flexString decodes either a JSON string or a bare number. Older clients
// send numeric route selectors.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// StopRequest is one requested intermediate stop. It decodes from either a
// bare city string or an object with a city and a wait in hours. "duration"
// is accepted as a legacy alias for "hours".
type StopRequest struct {
	City  string `json:"city" validate:"required"`
	Hours int    `json:"hours" validate:"gte=0,lte=168"`
}

func (s *StopRequest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var city string
		if err := json.Unmarshal(b, &city); err != nil {
			return err
		}
		s.City = city
		s.Hours = 0
		return nil
	}
	var obj struct {
		City     string `json:"city"`
		Hours    *int   `json:"hours"`
		Duration *int   `json:"duration"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.City = obj.City
	switch {
	case obj.Hours != nil:
		s.Hours = *obj.Hours
	case obj.Duration != nil:
		s.Hours = *obj.Duration
	default:
		s.Hours = 0
	}
	return nil
}

type PlanRequest struct {
	RouteID         flexString    `json:"route_id"`
	RouteIDs        []string      `json:"route_ids"`
	Origin          string        `json:"origin" validate:"required"`
	OriginCity      string        `json:"origin_city"`
	Destination     string        `json:"destination" validate:"required"`
	DestinationCity string        `json:"destination_city"`
	StartDate       string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	Stops           []StopRequest `json:"stops" validate:"dive"`
	SelectedStops   []StopRequest `json:"selected_stops" validate:"dive"`
}

// normalize folds the legacy field aliases into the canonical ones.
func (r *PlanRequest) normalize() {
	if r.Origin == "" {
		r.Origin = r.OriginCity
	}
	if r.Destination == "" {
		r.Destination = r.DestinationCity
	}
	if len(r.Stops) == 0 {
		r.Stops = r.SelectedStops
	}
}

// routeSelection resolves the selector fields into an ordered route ID list.
// Explicit route_ids win, then a conn_<id>_<id> selector, then a single id.
func (r *PlanRequest) routeSelection() []string {
	if len(r.RouteIDs) > 0 {
		return r.RouteIDs
	}
	if ids := domain.ParseConnectionID(string(r.RouteID)); ids != nil {
		return ids
	}
	if r.RouteID != "" {
		return []string{string(r.RouteID)}
	}
	return nil
}

type EventResponse struct {
	City      string `json:"city"`
	Event     string `json:"event"`
	Time      string `json:"time"`
	Date      string `json:"date"`
	RouteName string `json:"route_name,omitempty"`
}

type PlanResponse struct {
	Schedule      []EventResponse `json:"schedule"`
	RouteName     string          `json:"route_name"`
	TotalDuration string          `json:"total_duration"`
}

type PlanHandler struct {
	planner  *planner.Planner
	catalog  *store.Catalog
	cache    *cache.RedisCache // nil when redis is disabled
	ttl      time.Duration
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPlanHandler(p *planner.Planner, catalog *store.Catalog, redisCache *cache.RedisCache, ttl time.Duration, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		planner:  p,
		catalog:  catalog,
		cache:    redisCache,
		ttl:      ttl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("handler", "plan"),
	}
}

func (h *PlanHandler) BuildPlan(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	var req PlanRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.normalize()

	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	key := h.planCacheKey(req)
	if h.cache != nil {
		var cached PlanResponse
		if ok, err := h.cache.GetJSON(r.Context(), key, &cached); err == nil && ok {
			ServerStats.IncCacheHits()
			respondJSON(w, http.StatusOK, cached)
			return
		}
		ServerStats.IncCacheMisses()
	}

	startDate, err := domain.ParseDate(req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}

	layovers := make(domain.LayoverRequest, len(req.Stops))
	for _, s := range req.Stops {
		layovers[s.City] = s.Hours
	}

	start := time.Now()
	itin, err := h.planner.BuildItinerary(planner.ItineraryRequest{
		RouteIDs:    req.routeSelection(),
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   startDate,
		Layovers:    layovers,
	})
	if err != nil {
		h.respondPlanError(w, req, err)
		return
	}
	ServerStats.IncPlansBuilt()

	resp := buildPlanResponse(itin)
	h.logger.Info("plan built",
		"origin", req.Origin,
		"destination", req.Destination,
		"routes", req.routeSelection(),
		"events", len(resp.Schedule),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), key, resp, h.ttl); err != nil {
			h.logger.Debug("failed to cache plan", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *PlanHandler) respondPlanError(w http.ResponseWriter, req PlanRequest, err error) {
	switch {
	case errors.Is(err, store.ErrRouteNotFound):
		respondError(w, http.StatusNotFound, "route not found")
	case errors.Is(err, planner.ErrCityNotOnRoute),
		errors.Is(err, planner.ErrStopOrder),
		errors.Is(err, planner.ErrRoutesDisjoint),
		errors.Is(err, domain.ErrMalformedDate):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("plan failed",
			"origin", req.Origin,
			"destination", req.Destination,
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "failed to build schedule")
	}
}

// planCacheKey hashes the normalized request together with the catalog
// generation so a timetable reload invalidates every cached plan.
func (h *PlanHandler) planCacheKey(req PlanRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s|%s|%s", h.catalog.Generation(),
		strings.Join(req.routeSelection(), ","), req.Origin, req.Destination, req.StartDate)
	for _, s := range req.Stops {
		fmt.Fprintf(&b, "|%s=%d", s.City, s.Hours)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return cache.KeyPlan(hex.EncodeToString(sum[:16]))
}

func buildPlanResponse(itin *domain.Itinerary) PlanResponse {
	schedule := make([]EventResponse, 0, len(itin.Events))
	for _, e := range itin.Events {
		if e.Kind == domain.EventSegment {
			schedule = append(schedule, EventResponse{Event: "segment"})
			continue
		}
		schedule = append(schedule, EventResponse{
			City:      e.City,
			Event:     e.Label,
			Time:      e.Time.String(),
			Date:      domain.FormatDate(e.Date),
			RouteName: e.RouteName,
		})
	}
	return PlanResponse{
		Schedule:      schedule,
		RouteName:     itin.RouteLabel,
		TotalDuration: itin.TotalDuration,
	}
}

// validationMessage flattens the first field error into a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
		case "datetime":
			return fmt.Sprintf("%s must be YYYY-MM-DD", strings.ToLower(fe.Field()))
		case "gte", "lte":
			return fmt.Sprintf("%s out of range", strings.ToLower(fe.Field()))
		}
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
	return "invalid request"
}
