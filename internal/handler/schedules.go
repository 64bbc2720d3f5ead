package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"railplan/internal/domain"
	"railplan/internal/planner"
	"railplan/internal/repository"
	"railplan/internal/store"
)

// ScheduleHandler persists named trip plans and replays them on demand.
type ScheduleHandler struct {
	repo     *repository.ScheduleRepository
	planner  *planner.Planner
	validate *validator.Validate
	logger   *slog.Logger
}

func NewScheduleHandler(repo *repository.ScheduleRepository, p *planner.Planner, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		repo:     repo,
		planner:  p,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("handler", "schedules"),
	}
}

type SaveScheduleRequest struct {
	Name        string        `json:"name" validate:"required,max=120"`
	RouteID     flexString    `json:"route_id"`
	RouteIDs    []string      `json:"route_ids"`
	Origin      string        `json:"origin" validate:"required"`
	Destination string        `json:"destination" validate:"required"`
	StartDate   string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	Stops       []StopRequest `json:"stops" validate:"dive"`
}

type ScheduleResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	RouteIDs    []string      `json:"route_ids"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	StartDate   string        `json:"start_date"`
	Stops       []StopRequest `json:"stops"`
	CreatedAt   time.Time     `json:"created_at"`
}

type SchedulesListResponse struct {
	Schedules []ScheduleResponse `json:"schedules"`
	Count     int                `json:"count"`
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	var req SaveScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	routeIDs := req.RouteIDs
	if len(routeIDs) == 0 {
		if ids := domain.ParseConnectionID(string(req.RouteID)); ids != nil {
			routeIDs = ids
		} else if req.RouteID != "" {
			routeIDs = []string{string(req.RouteID)}
		}
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

	// Build once up front so broken selections are rejected at save time
	// rather than on replay.
	if _, err := h.planner.BuildItinerary(planner.ItineraryRequest{
		RouteIDs:    routeIDs,
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   startDate,
		Layovers:    layovers,
	}); err != nil {
		h.respondScheduleError(w, err)
		return
	}

	saved := repository.SavedSchedule{
		ID:          uuid.NewString(),
		Name:        req.Name,
		RouteIDs:    routeIDs,
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		Layovers:    layovers,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.repo.Save(r.Context(), saved); err != nil {
		h.logger.Error("failed to save schedule", "name", req.Name, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}

	h.logger.Info("schedule saved", "id", saved.ID, "name", saved.Name)
	respondJSON(w, http.StatusCreated, toScheduleResponse(saved))
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	schedules, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list schedules", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	out := make([]ScheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, toScheduleResponse(s))
	}
	respondJSON(w, http.StatusOK, SchedulesListResponse{Schedules: out, Count: len(out)})
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	saved, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			respondError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("failed to load schedule", "id", r.PathValue("id"), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	respondJSON(w, http.StatusOK, toScheduleResponse(saved))
}

// Itinerary replays a saved schedule against the current timetable. The
// result can differ from what the client saw at save time after a reload.
func (h *ScheduleHandler) Itinerary(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	saved, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			respondError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("failed to load schedule", "id", r.PathValue("id"), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	startDate, err := domain.ParseDate(saved.StartDate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stored start date is invalid")
		return
	}
	itin, err := h.planner.BuildItinerary(planner.ItineraryRequest{
		RouteIDs:    saved.RouteIDs,
		Origin:      saved.Origin,
		Destination: saved.Destination,
		StartDate:   startDate,
		Layovers:    saved.Layovers,
	})
	if err != nil {
		h.respondScheduleError(w, err)
		return
	}
	ServerStats.IncPlansBuilt()
	respondJSON(w, http.StatusOK, buildPlanResponse(itin))
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			respondError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("failed to delete schedule", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	h.logger.Info("schedule deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) respondScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrRouteNotFound):
		respondError(w, http.StatusNotFound, "route not found")
	case errors.Is(err, planner.ErrCityNotOnRoute),
		errors.Is(err, planner.ErrStopOrder),
		errors.Is(err, planner.ErrRoutesDisjoint):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("schedule itinerary failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build schedule")
	}
}

func toScheduleResponse(s repository.SavedSchedule) ScheduleResponse {
	stops := make([]StopRequest, 0, len(s.Layovers))
	for city, hours := range s.Layovers {
		stops = append(stops, StopRequest{City: city, Hours: hours})
	}
	return ScheduleResponse{
		ID:          s.ID,
		Name:        s.Name,
		RouteIDs:    s.RouteIDs,
		Origin:      s.Origin,
		Destination: s.Destination,
		StartDate:   s.StartDate,
		Stops:       stops,
		CreatedAt:   s.CreatedAt,
	}
}
