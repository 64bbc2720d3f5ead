// Package timetable parses the tabular route timetable consumed by the
// catalog. The format is a single CSV with one row per stop:
//
//	route_id,route_name,stop_seq,city,time
//
// Stops of a route must carry strictly increasing, unique sequence numbers
// and well-formed HH:MM times; a route needs at least two stops. Any
// malformed row fails the whole load so the catalog never holds a partial
// snapshot.
package timetable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"railplan/internal/domain"
)

var ErrMalformedTimetable = errors.New("malformed timetable")

type Result struct {
	Routes map[string]domain.Route
	Stops  map[string][]domain.Stop
}

type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With("component", "timetable_parser"),
	}
}

// ParseFile reads and parses a timetable CSV from disk.
func (p *Parser) ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parse timetable: open %q: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f)
}

func (p *Parser) Parse(r io.Reader) (*Result, error) {
	start := time.Now()

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("parse timetable: read header: %w", err)
	}
	idx := makeIndex(header)
	for _, field := range []string{"route_id", "route_name", "stop_seq", "city", "time"} {
		if _, ok := idx[field]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedTimetable, field)
		}
	}

	result := &Result{
		Routes: make(map[string]domain.Route),
		Stops:  make(map[string][]domain.Stop),
	}
	names := make(map[string]string)

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse timetable: read row: %w", err)
		}
		line++

		routeID := strings.TrimSpace(getField(record, idx, "route_id"))
		if routeID == "" {
			return nil, fmt.Errorf("%w: line %d: empty route_id", ErrMalformedTimetable, line)
		}
		if strings.Contains(routeID, "_") {
			// Underscores are reserved for connection selector IDs.
			return nil, fmt.Errorf("%w: line %d: route_id %q contains %q", ErrMalformedTimetable, line, routeID, "_")
		}

		city := strings.TrimSpace(getField(record, idx, "city"))
		if city == "" {
			return nil, fmt.Errorf("%w: line %d: empty city", ErrMalformedTimetable, line)
		}

		seq, err := strconv.Atoi(strings.TrimSpace(getField(record, idx, "stop_seq")))
		if err != nil || seq < 1 {
			return nil, fmt.Errorf("%w: line %d: bad stop_seq %q", ErrMalformedTimetable, line, getField(record, idx, "stop_seq"))
		}

		clock, err := domain.ParseClock(strings.TrimSpace(getField(record, idx, "time")))
		if err != nil {
			return nil, fmt.Errorf("parse timetable: line %d: %w", line, err)
		}

		name := strings.TrimSpace(getField(record, idx, "route_name"))
		if prev, ok := names[routeID]; ok && name != "" && prev != name {
			return nil, fmt.Errorf("%w: line %d: route %q renamed %q -> %q", ErrMalformedTimetable, line, routeID, prev, name)
		}
		if name != "" {
			names[routeID] = name
		}

		result.Stops[routeID] = append(result.Stops[routeID], domain.Stop{
			RouteID: routeID,
			Seq:     seq,
			City:    city,
			Time:    clock,
		})
	}

	for routeID, stops := range result.Stops {
		sort.SliceStable(stops, func(i, j int) bool {
			return stops[i].Seq < stops[j].Seq
		})
		if len(stops) < 2 {
			return nil, fmt.Errorf("%w: route %q has %d stops, need at least 2", ErrMalformedTimetable, routeID, len(stops))
		}
		for i := 1; i < len(stops); i++ {
			if stops[i].Seq <= stops[i-1].Seq {
				return nil, fmt.Errorf("%w: route %q: stop_seq %d repeats or decreases", ErrMalformedTimetable, routeID, stops[i].Seq)
			}
		}
		result.Stops[routeID] = stops

		result.Routes[routeID] = domain.Route{
			ID:     routeID,
			Name:   names[routeID],
			Origin: stops[0].City,
			End:    stops[len(stops)-1].City,
		}
	}

	p.logger.Info("timetable parsed",
		"routes", len(result.Routes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return record[i]
	}
	return ""
}
