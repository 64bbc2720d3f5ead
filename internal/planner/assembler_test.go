package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railplan/internal/domain"
	"railplan/internal/store"
)

type eventCheck struct {
	city  string
	label string
	time  string
	date  string
}

func assertEvents(t *testing.T, events []domain.ScheduleEvent, want []eventCheck) {
	t.Helper()
	dated := make([]domain.ScheduleEvent, 0, len(events))
	for _, e := range events {
		if e.Kind != domain.EventSegment {
			dated = append(dated, e)
		}
	}
	require.Len(t, dated, len(want))
	for i, w := range want {
		e := dated[i]
		assert.Equal(t, w.city, e.City, "event %d city", i)
		assert.Equal(t, w.label, e.Label, "event %d label", i)
		assert.Equal(t, w.time, e.Time.String(), "event %d time", i)
		assert.Equal(t, w.date, domain.FormatDate(e.Date), "event %d date", i)
	}
}

func assertChronological(t *testing.T, events []domain.ScheduleEvent) {
	t.Helper()
	var prev domain.ScheduleEvent
	seen := make(map[[3]string]struct{})
	first := true
	for _, e := range events {
		if !e.Valid() {
			continue
		}
		if !first {
			assert.False(t, e.When().Before(prev.When()),
				"events out of order: %s %s -> %s %s", prev.City, prev.When(), e.City, e.When())
		}
		key := [3]string{domain.FormatDate(e.Date), e.Time.String(), e.City}
		_, dup := seen[key]
		assert.False(t, dup, "duplicate event %v", key)
		seen[key] = struct{}{}
		prev = e
		first = false
	}
}

func TestAssembleDirectRoute(t *testing.T) {
	p := fixturePlanner(t)

	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"2"},
		Origin:      "Chicago",
		Destination: "Topeka",
		StartDate:   date(t, "2025-11-12"),
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"Chicago", "Board", "08:00", "2025-11-12"},
		{"Princeton", "Stop", "14:00", "2025-11-12"},
		{"Galesburg", "Stop", "16:00", "2025-11-12"},
		{"Topeka", "Disembark", "20:00", "2025-11-12"},
	})
	assert.Equal(t, "12 hours", itin.TotalDuration)
	assertChronological(t, itin.Events)
}

func TestAssembleDayBoundaryRollover(t *testing.T) {
	routes := map[string]domain.Route{
		"7": {ID: "7", Name: "Night Owl", Origin: "Springfield", End: "Joliet"},
	}
	stops := map[string][]domain.Stop{
		"7": {
			{RouteID: "7", Seq: 1, City: "Springfield", Time: clock(t, "23:50")},
			{RouteID: "7", Seq: 2, City: "Lincoln", Time: clock(t, "00:10")},
			{RouteID: "7", Seq: 3, City: "Joliet", Time: clock(t, "06:00")},
		},
	}
	cat := store.New()
	cat.Replace(routes, stops)
	p := New(cat, discardLogger(), Options{})

	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"7"},
		Origin:      "Springfield",
		Destination: "Joliet",
		StartDate:   date(t, "2025-11-12"),
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"Springfield", "Board", "23:50", "2025-11-12"},
		{"Lincoln", "Stop", "00:10", "2025-11-13"},
		{"Joliet", "Disembark", "06:00", "2025-11-13"},
	})
	assert.Equal(t, "6 hours", itin.TotalDuration)
}

func TestAssembleLayoverRebooksSameRouteNextDay(t *testing.T) {
	p := fixturePlanner(t)

	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"2"},
		Origin:      "Chicago",
		Destination: "Topeka",
		StartDate:   date(t, "2025-11-12"),
		Layovers:    domain.LayoverRequest{"Princeton": 24},
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"Chicago", "Board", "08:00", "2025-11-12"},
		{"Princeton", "24 hour stop", "14:00", "2025-11-12"},
		{"Princeton", "Board", "14:00", "2025-11-13"},
		{"Galesburg", "Stop", "16:00", "2025-11-13"},
		{"Topeka", "Disembark", "20:00", "2025-11-13"},
	})
	assert.Equal(t, "1 day 12 hours", itin.TotalDuration)
	assertChronological(t, itin.Events)
}

func TestAssembleLayoverPicksEarlierAlternateRoute(t *testing.T) {
	p := fixturePlanner(t)

	// A 2 hour wait at Princeton catches the Prairie Express at 16:00
	// instead of waiting a full day for the next Southwest Chief.
	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"2"},
		Origin:      "Chicago",
		Destination: "Topeka",
		StartDate:   date(t, "2025-11-12"),
		Layovers:    domain.LayoverRequest{"Princeton": 2},
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"Chicago", "Board", "08:00", "2025-11-12"},
		{"Princeton", "2 hour stop", "14:00", "2025-11-12"},
		{"Princeton", "Board", "16:00", "2025-11-12"},
		{"Topeka", "Disembark", "22:00", "2025-11-12"},
	})

	board := itin.Events[2]
	assert.Equal(t, "Prairie Express", board.RouteName)
	assert.Equal(t, "14 hours", itin.TotalDuration)
}

func TestAssembleZeroHourLayoverIsPlainStop(t *testing.T) {
	p := fixturePlanner(t)

	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"2"},
		Origin:      "Chicago",
		Destination: "Topeka",
		StartDate:   date(t, "2025-11-12"),
		Layovers:    domain.LayoverRequest{"Princeton": 0},
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"Chicago", "Board", "08:00", "2025-11-12"},
		{"Princeton", "Stop", "14:00", "2025-11-12"},
		{"Galesburg", "Stop", "16:00", "2025-11-12"},
		{"Topeka", "Disembark", "20:00", "2025-11-12"},
	})
}

func TestAssembleHubJoin(t *testing.T) {
	p := fixturePlanner(t)

	// Lake Shore Limited arrives Chicago 09:45 next day; Capitol Chief
	// leaves the same day at 17:45, an 8 hour transfer.
	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"1", "4"},
		Origin:      "New York",
		Destination: "Topeka",
		StartDate:   date(t, "2025-11-12"),
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"New York", "Board", "12:30", "2025-11-12"},
		{"Buffalo", "Stop", "23:59", "2025-11-12"},
		{"Chicago", "Disembark - 8 hour layover", "09:45", "2025-11-13"},
		{"Chicago", "Board", "17:45", "2025-11-13"},
		{"Topeka", "Disembark", "23:00", "2025-11-13"},
	})

	layovers := 0
	segments := 0
	for _, e := range itin.Events {
		if e.Kind == domain.EventLayover {
			layovers++
		}
		if e.Kind == domain.EventSegment {
			segments++
		}
	}
	assert.Equal(t, 1, layovers)
	assert.Equal(t, 1, segments)
	assertChronological(t, itin.Events)
}

func TestAssembleHubJoinRollsToNextDay(t *testing.T) {
	p := fixturePlanner(t)

	// Southwest Chief leaves Chicago 08:00, before the 09:45 arrival, so
	// boarding rolls to the next morning.
	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"1", "2"},
		Origin:      "New York",
		Destination: "Topeka",
		StartDate:   date(t, "2025-11-12"),
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"New York", "Board", "12:30", "2025-11-12"},
		{"Buffalo", "Stop", "23:59", "2025-11-12"},
		{"Chicago", "Disembark - 22 hour layover", "09:45", "2025-11-13"},
		{"Chicago", "Board", "08:00", "2025-11-14"},
		{"Princeton", "Stop", "14:00", "2025-11-14"},
		{"Galesburg", "Stop", "16:00", "2025-11-14"},
		{"Topeka", "Disembark", "20:00", "2025-11-14"},
	})
	assert.Equal(t, "2 days 7 hours", itin.TotalDuration)
	assertChronological(t, itin.Events)
}

func TestAssembleHubLayoverRequestDelaysBoarding(t *testing.T) {
	p := fixturePlanner(t)

	// Asking for 20 hours in Chicago pushes past the same-day 17:45
	// departure to the next one a day later.
	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"1", "4"},
		Origin:      "New York",
		Destination: "Topeka",
		StartDate:   date(t, "2025-11-12"),
		Layovers:    domain.LayoverRequest{"Chicago": 20},
	})
	require.NoError(t, err)

	assertEvents(t, itin.Events, []eventCheck{
		{"New York", "Board", "12:30", "2025-11-12"},
		{"Buffalo", "Stop", "23:59", "2025-11-12"},
		{"Chicago", "Disembark - 32 hour layover", "09:45", "2025-11-13"},
		{"Chicago", "Board", "17:45", "2025-11-14"},
		{"Topeka", "Disembark", "23:00", "2025-11-14"},
	})
	assertChronological(t, itin.Events)
}

func TestAssembleSameMinuteConnection(t *testing.T) {
	routes := map[string]domain.Route{
		"21": {ID: "21", Name: "Valley Flyer", Origin: "Alpha", End: "Hubton"},
		"22": {ID: "22", Name: "Summit Express", Origin: "Hubton", End: "Omega"},
	}
	stops := map[string][]domain.Stop{
		"21": {
			{RouteID: "21", Seq: 1, City: "Alpha", Time: clock(t, "08:00")},
			{RouteID: "21", Seq: 2, City: "Hubton", Time: clock(t, "12:00")},
		},
		"22": {
			{RouteID: "22", Seq: 1, City: "Hubton", Time: clock(t, "12:00")},
			{RouteID: "22", Seq: 2, City: "Omega", Time: clock(t, "18:00")},
		},
	}
	cat := store.New()
	cat.Replace(routes, stops)
	p := New(cat, discardLogger(), Options{})

	itin, err := p.BuildItinerary(ItineraryRequest{
		RouteIDs:    []string{"21", "22"},
		Origin:      "Alpha",
		Destination: "Omega",
		StartDate:   date(t, "2025-11-12"),
	})
	require.NoError(t, err)

	// The second train leaves the minute the first arrives; the Board
	// alone records the transfer, with no wait marker sharing its slot.
	assertEvents(t, itin.Events, []eventCheck{
		{"Alpha", "Board", "08:00", "2025-11-12"},
		{"Hubton", "Board", "12:00", "2025-11-12"},
		{"Omega", "Disembark", "18:00", "2025-11-12"},
	})
	assert.Equal(t, "10 hours", itin.TotalDuration)
	assertChronological(t, itin.Events)
}

func TestAssembleLayoverWithNoOnwardServiceKeepsTrain(t *testing.T) {
	// The catalog carries nothing serving the ridden corridor, so the
	// resolver cannot rebook out of Medford. The requested wait degrades
	// to a plain stop and the passenger stays on the original train.
	routes := map[string]domain.Route{
		"2": {ID: "2", Name: "Southwest Chief", Origin: "Chicago", End: "Topeka"},
	}
	stops := map[string][]domain.Stop{
		"2": {
			{RouteID: "2", Seq: 1, City: "Chicago", Time: clock(t, "08:00")},
			{RouteID: "2", Seq: 2, City: "Topeka", Time: clock(t, "20:00")},
		},
	}
	cat := store.New()
	cat.Replace(routes, stops)
	p := New(cat, discardLogger(), Options{})

	legs := []leg{{
		route: domain.Route{ID: "9", Name: "Coastal Local", Origin: "Ashland", End: "Yreka"},
		stops: []domain.Stop{
			{RouteID: "9", Seq: 1, City: "Ashland", Time: clock(t, "07:00")},
			{RouteID: "9", Seq: 2, City: "Medford", Time: clock(t, "08:30")},
			{RouteID: "9", Seq: 3, City: "Yreka", Time: clock(t, "11:00")},
		},
		last: true,
	}}

	events, err := p.assemble(legs, date(t, "2025-11-12"), domain.LayoverRequest{"Medford": 6})
	require.NoError(t, err)

	assertEvents(t, events, []eventCheck{
		{"Ashland", "Board", "07:00", "2025-11-12"},
		{"Medford", "Stop", "08:30", "2025-11-12"},
		{"Yreka", "Disembark", "11:00", "2025-11-12"},
	})
	assertChronological(t, events)
}
