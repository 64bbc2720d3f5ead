package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"railplan/internal/domain"
	"railplan/internal/planner"
	"railplan/internal/store"
)

func newTestRepo(t *testing.T) *ScheduleRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db))
	return NewScheduleRepository(db)
}

func sampleSchedule(id string, createdAt time.Time) SavedSchedule {
	return SavedSchedule{
		ID:          id,
		Name:        "Fall trip",
		RouteIDs:    []string{"1", "2"},
		Origin:      "New York",
		Destination: "Topeka",
		StartDate:   "2025-11-12",
		Layovers:    domain.LayoverRequest{"Chicago": 8},
		CreatedAt:   createdAt,
	}
}

func TestSaveAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved := sampleSchedule("s1", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, saved))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, saved.Name, got.Name)
	assert.Equal(t, []string{"1", "2"}, got.RouteIDs)
	assert.Equal(t, "New York", got.Origin)
	assert.Equal(t, "2025-11-12", got.StartDate)
	assert.Equal(t, 8, got.Layovers.Hours("Chicago"))
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestSaveDuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := sampleSchedule("s1", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, s))
	assert.Error(t, repo.Save(ctx, s))
}

func TestListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, sampleSchedule("older", base)))
	require.NoError(t, repo.Save(ctx, sampleSchedule("newer", base.Add(time.Hour))))

	schedules, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, "newer", schedules[0].ID)
	assert.Equal(t, "older", schedules[1].ID)
}

func TestListEmpty(t *testing.T) {
	repo := newTestRepo(t)

	schedules, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schedules)
}

func TestReplayedScheduleReproducesItinerary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cat := store.New()
	cat.Replace(
		map[string]domain.Route{
			"2": {ID: "2", Name: "Southwest Chief", Origin: "Chicago", End: "Topeka"},
		},
		map[string][]domain.Stop{
			"2": {
				{RouteID: "2", Seq: 1, City: "Chicago", Time: mustClock(t, "08:00")},
				{RouteID: "2", Seq: 2, City: "Princeton", Time: mustClock(t, "14:00")},
				{RouteID: "2", Seq: 3, City: "Topeka", Time: mustClock(t, "20:00")},
			},
		},
	)
	p := planner.New(cat, slog.New(slog.NewTextHandler(io.Discard, nil)), planner.Options{})

	build := func(s SavedSchedule) *domain.Itinerary {
		start, err := domain.ParseDate(s.StartDate)
		require.NoError(t, err)
		itin, err := p.BuildItinerary(planner.ItineraryRequest{
			RouteIDs:    s.RouteIDs,
			Origin:      s.Origin,
			Destination: s.Destination,
			StartDate:   start,
			Layovers:    s.Layovers,
		})
		require.NoError(t, err)
		return itin
	}

	saved := SavedSchedule{
		ID:          "trip",
		Name:        "Chief with a Princeton stay",
		RouteIDs:    []string{"2"},
		Origin:      "Chicago",
		Destination: "Topeka",
		StartDate:   "2025-11-12",
		Layovers:    domain.LayoverRequest{"Princeton": 2},
		CreatedAt:   time.Now().UTC(),
	}
	original := build(saved)

	require.NoError(t, repo.Save(ctx, saved))
	got, err := repo.Get(ctx, "trip")
	require.NoError(t, err)

	replayed := build(got)
	assert.Equal(t, original.Events, replayed.Events)
	assert.Equal(t, original.RouteLabel, replayed.RouteLabel)
	assert.Equal(t, original.TotalDuration, replayed.TotalDuration)
}

func mustClock(t *testing.T, s string) domain.ClockTime {
	t.Helper()
	c, err := domain.ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleSchedule("s1", time.Now().UTC())))
	require.NoError(t, repo.Delete(ctx, "s1"))

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "s1"), ErrScheduleNotFound)
}
