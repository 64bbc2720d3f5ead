// Package repository persists saved schedule specifications in SQLite.
// A saved schedule stores the inputs of a plan (route chain, origin,
// destination, start date, layovers), never the generated itinerary:
// replaying the inputs through the planner must reproduce the same events.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"railplan/internal/domain"
)

var ErrScheduleNotFound = errors.New("saved schedule not found")

type SavedSchedule struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	RouteIDs    []string              `json:"route_ids"`
	Origin      string                `json:"origin"`
	Destination string                `json:"destination"`
	StartDate   string                `json:"start_date"`
	Layovers    domain.LayoverRequest `json:"layovers"`
	CreatedAt   time.Time             `json:"created_at"`
}

type ScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// InitSchema creates the saved_schedules table when missing.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	query := `
	CREATE TABLE IF NOT EXISTS saved_schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		route_ids TEXT NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		start_date TEXT NOT NULL,
		layovers TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("init schema: create saved_schedules: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) Save(ctx context.Context, s SavedSchedule) error {
	layovers, err := json.Marshal(s.Layovers)
	if err != nil {
		return fmt.Errorf("save schedule: marshal layovers: %w", err)
	}

	query := `
	INSERT INTO saved_schedules (
		id, name, route_ids, origin, destination, start_date, layovers, created_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.Name,
		strings.Join(s.RouteIDs, ","),
		s.Origin,
		s.Destination,
		s.StartDate,
		string(layovers),
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save schedule: insert id=%s: %w", s.ID, err)
	}
	return nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]SavedSchedule, error) {
	query := `
	SELECT id, name, route_ids, origin, destination, start_date, layovers, created_at
	FROM saved_schedules
	ORDER BY created_at DESC, id;
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: query: %w", err)
	}
	defer rows.Close()

	schedules := make([]SavedSchedule, 0, 16)
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schedules: row iteration: %w", err)
	}
	return schedules, nil
}

func (r *ScheduleRepository) Get(ctx context.Context, id string) (SavedSchedule, error) {
	query := `
	SELECT id, name, route_ids, origin, destination, start_date, layovers, created_at
	FROM saved_schedules
	WHERE id = ?;
	`
	row := r.db.QueryRowContext(ctx, query, id)
	s, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedSchedule{}, fmt.Errorf("%w: %q", ErrScheduleNotFound, id)
	}
	if err != nil {
		return SavedSchedule{}, fmt.Errorf("get schedule id=%s: %w", id, err)
	}
	return s, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_schedules WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete schedule id=%s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule id=%s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrScheduleNotFound, id)
	}
	return nil
}

func scanSchedule(scan func(dest ...any) error) (SavedSchedule, error) {
	var (
		s         SavedSchedule
		routeIDs  string
		layovers  string
		createdAt time.Time
	)
	if err := scan(&s.ID, &s.Name, &routeIDs, &s.Origin, &s.Destination, &s.StartDate, &layovers, &createdAt); err != nil {
		return SavedSchedule{}, err
	}
	s.RouteIDs = strings.Split(routeIDs, ",")
	s.CreatedAt = createdAt
	if err := json.Unmarshal([]byte(layovers), &s.Layovers); err != nil {
		return SavedSchedule{}, fmt.Errorf("unmarshal layovers: %w", err)
	}
	return s, nil
}
