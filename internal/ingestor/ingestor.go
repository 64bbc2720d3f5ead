// Package ingestor loads the timetable into the catalog at startup and
// reloads it on an interval when the file contents change.
package ingestor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"sync"
	"time"

	"railplan/internal/store"
	"railplan/pkg/timetable"
)

type Ingestor struct {
	path     string
	parser   *timetable.Parser
	catalog  *store.Catalog
	interval time.Duration
	logger   *slog.Logger

	// OnUpdate fires after each successful catalog swap.
	OnUpdate func(context.Context)

	ready       bool
	readyMu     sync.RWMutex
	fingerprint string
}

func New(path string, catalog *store.Catalog, interval time.Duration, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		path:     path,
		parser:   timetable.NewParser(logger),
		catalog:  catalog,
		interval: interval,
		logger:   logger.With("component", "timetable_ingestor"),
	}
}

func (i *Ingestor) Start(ctx context.Context) {
	i.update(ctx)

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.update(ctx)
		}
	}
}

func (i *Ingestor) update(ctx context.Context) {
	start := time.Now()

	data, err := os.ReadFile(i.path)
	if err != nil {
		i.logger.Error("failed to read timetable", "path", i.path, "error", err)
		return
	}

	sum := sha256.Sum256(data)
	fingerprint := hex.EncodeToString(sum[:])
	if fingerprint == i.fingerprint {
		i.logger.Debug("timetable unchanged", "path", i.path)
		return
	}

	result, err := i.parser.ParseFile(i.path)
	if err != nil {
		// Keep the previous snapshot on a bad file.
		i.logger.Error("failed to parse timetable", "path", i.path, "error", err)
		return
	}

	i.catalog.Replace(result.Routes, result.Stops)
	i.fingerprint = fingerprint

	if !i.IsReady() {
		i.setReady(true)
	}
	if i.OnUpdate != nil {
		i.OnUpdate(ctx)
	}

	i.logger.Info("timetable loaded",
		"path", i.path,
		"routes", len(result.Routes),
		"generation", i.catalog.Generation(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (i *Ingestor) IsReady() bool {
	i.readyMu.RLock()
	defer i.readyMu.RUnlock()
	return i.ready
}

func (i *Ingestor) setReady(ready bool) {
	i.readyMu.Lock()
	defer i.readyMu.Unlock()
	i.ready = ready
}
