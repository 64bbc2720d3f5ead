package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railplan/internal/domain"
	"railplan/internal/store"
)

func TestFindPathsDirect(t *testing.T) {
	p := fixturePlanner(t)

	paths := p.FindPaths("Chicago", "Topeka")
	require.NotEmpty(t, paths)

	// Single-leg paths come first.
	assert.Equal(t, 1, paths[0].Hops)
	ids := make(map[string]bool)
	for _, path := range paths {
		if path.Hops == 1 {
			ids[path.Legs[0].RouteID] = true
		}
	}
	assert.True(t, ids["2"])
	assert.True(t, ids["4"])
}

func TestFindPathsWithTransfer(t *testing.T) {
	p := fixturePlanner(t)

	paths := p.FindPaths("New York", "Topeka")
	require.NotEmpty(t, paths)

	for _, path := range paths {
		assert.GreaterOrEqual(t, path.Hops, 2)
		assert.Equal(t, "Topeka", path.Destination())
	}

	first := paths[0]
	assert.Equal(t, 2, first.Hops)
	assert.Equal(t, "1", first.Legs[0].RouteID)
	assert.Equal(t, []string{first.Legs[0].Hub}, first.Hubs())

	two, ok := Denormalize(first)
	require.True(t, ok)
	assert.Equal(t, first.ID, two.ID)
	assert.Equal(t, "Lake Shore Limited", two.FirstRouteName)
}

func TestFindPathsSortedByHops(t *testing.T) {
	p := fixturePlanner(t)

	paths := p.FindPaths("New York", "Topeka")
	for i := 1; i < len(paths); i++ {
		assert.LessOrEqual(t, paths[i-1].Hops, paths[i].Hops)
	}
}

func TestFindPathsSameCity(t *testing.T) {
	p := fixturePlanner(t)
	assert.Empty(t, p.FindPaths("Chicago", "Chicago"))
}

func TestFindPathsUnreachable(t *testing.T) {
	p := fixturePlanner(t)

	assert.Empty(t, p.FindPaths("Ashland", "Chicago"))
	assert.Empty(t, p.FindPaths("Chicago", "Ashland"))
	assert.Empty(t, p.FindPaths("Nowhere", "Chicago"))
}

// lineCatalog is a chain of single-hop routes: c0 -a-> c1 -b-> c2 -c-> c3 -d-> c4.
func lineCatalog(t *testing.T) *store.Catalog {
	t.Helper()
	routes := make(map[string]domain.Route)
	stops := make(map[string][]domain.Stop)
	cities := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"}
	ids := []string{"11", "12", "13", "14"}
	for i, id := range ids {
		routes[id] = domain.Route{ID: id, Name: "Link " + id, Origin: cities[i], End: cities[i+1]}
		stops[id] = []domain.Stop{
			{RouteID: id, Seq: 1, City: cities[i], Time: clock(t, "08:00")},
			{RouteID: id, Seq: 2, City: cities[i+1], Time: clock(t, "10:00")},
		}
	}
	cat := store.New()
	cat.Replace(routes, stops)
	return cat
}

func TestFindPathsHopLimit(t *testing.T) {
	p := New(lineCatalog(t), discardLogger(), Options{MaxHops: 3})

	require.Len(t, p.FindPaths("Alpha", "Delta"), 1)
	assert.Equal(t, 3, p.FindPaths("Alpha", "Delta")[0].Hops)

	// Four hops needed, over the limit.
	assert.Empty(t, p.FindPaths("Alpha", "Echo"))
}

func TestFindPathsCacheInvalidatesOnReload(t *testing.T) {
	cat := lineCatalog(t)
	p := New(cat, discardLogger(), Options{MaxHops: 3})

	require.Len(t, p.FindPaths("Alpha", "Bravo"), 1)

	// Drop every route; the generation bump must bypass the memo.
	routes := map[string]domain.Route{
		"21": {ID: "21", Name: "Solo", Origin: "Foxtrot", End: "Golf"},
	}
	stops := map[string][]domain.Stop{
		"21": {
			{RouteID: "21", Seq: 1, City: "Foxtrot", Time: clock(t, "08:00")},
			{RouteID: "21", Seq: 2, City: "Golf", Time: clock(t, "09:00")},
		},
	}
	cat.Replace(routes, stops)

	assert.Empty(t, p.FindPaths("Alpha", "Bravo"))
	assert.Len(t, p.FindPaths("Foxtrot", "Golf"), 1)
}

func TestDenormalizeRejectsOtherLengths(t *testing.T) {
	_, ok := Denormalize(domain.NewConnectionPath([]domain.PathLeg{
		{RouteID: "1", RouteName: "A", Hub: "X"},
	}))
	assert.False(t, ok)

	_, ok = Denormalize(domain.NewConnectionPath([]domain.PathLeg{
		{RouteID: "1", RouteName: "A", Hub: "X"},
		{RouteID: "2", RouteName: "B", Hub: "Y"},
		{RouteID: "3", RouteName: "C", Hub: "Z"},
	}))
	assert.False(t, ok)
}
