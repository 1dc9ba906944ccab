package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"lawyrs/internal/domain"
	"lawyrs/internal/metrics"
)

// Hybrid puts the local store and the optional cloud service behind one
// read/write contract. The local store is the system of record: writes land
// there first and reads by specialist or key never leave it. The cloud side
// only ever degrades to "no data".
type Hybrid struct {
	local  domain.MemoryStore
	cloud  domain.CloudMemory
	logger *slog.Logger

	mirrorTimeout time.Duration
	mirrors       sync.WaitGroup
}

const defaultMirrorTimeout = 5 * time.Second

func NewHybrid(local domain.MemoryStore, cloud domain.CloudMemory, logger *slog.Logger) *Hybrid {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{local: local, cloud: cloud, logger: logger, mirrorTimeout: defaultMirrorTimeout}
}

func (h *Hybrid) cloudEnabled() bool {
	return h.cloud != nil && h.cloud.Enabled()
}

// Write persists mem locally and, when the cloud is configured, mirrors it
// there without waiting. Only a local failure is returned.
func (h *Hybrid) Write(ctx context.Context, mem domain.MemoryEntry) (string, error) {
	if strings.TrimSpace(mem.Key) == "" || strings.TrimSpace(mem.Value) == "" {
		return "", fmt.Errorf("memory write needs a key and a value: %w", domain.ErrInvalidRequest)
	}
	mem.Confidence = clampConfidence(mem.Confidence)

	id, err := h.local.SaveMemory(ctx, mem)
	if err != nil {
		return "", fmt.Errorf("local memory write: %w", err)
	}

	if h.cloudEnabled() {
		h.mirrors.Add(1)
		go h.mirror(context.WithoutCancel(ctx), mem)
	}
	return id, nil
}

// mirror copies a locally saved fact to the cloud in the background. It is
// bounded by its own timeout and outlives the caller's request.
func (h *Hybrid) mirror(ctx context.Context, mem domain.MemoryEntry) {
	defer h.mirrors.Done()
	ctx, cancel := context.WithTimeout(ctx, h.mirrorTimeout)
	defer cancel()

	if _, err := h.cloud.Add(ctx, mem); err != nil {
		metrics.CloudMemoryFailures("add").Inc()
		h.logger.Warn("cloud memory write failed, local copy kept",
			"key", mem.Key,
			"agent", mem.Specialist,
			"err", err,
		)
	}
}

// Wait blocks until every in-flight cloud mirror has finished.
func (h *Hybrid) Wait() {
	h.mirrors.Wait()
}

// Read is the targeted lookup by specialist, key and case. Always local.
func (h *Hybrid) Read(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryEntry, error) {
	return h.local.GetMemories(ctx, q)
}

// Search asks the cloud first and falls back to a local keyword search
// when the cloud is disabled, fails or finds nothing. The result says which
// store answered.
func (h *Hybrid) Search(ctx context.Context, principal domain.Principal, query string, limit int) (domain.MemorySearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	if h.cloudEnabled() {
		entries, err := h.cloud.Search(ctx, principal, query, limit)
		switch {
		case err != nil:
			metrics.CloudMemoryFailures("search").Inc()
			h.logger.Warn("cloud memory search failed, using local store", "err", err)
		case len(entries) > 0:
			return domain.MemorySearchResult{Source: domain.SourceCloud, Entries: entries}, nil
		}
	}

	entries, err := h.local.SearchMemories(ctx, principal, query, limit)
	if err != nil {
		return domain.MemorySearchResult{Source: domain.SourceLocal, Entries: []domain.MemoryEntry{}}, fmt.Errorf("local memory search: %w", err)
	}
	return domain.MemorySearchResult{Source: domain.SourceLocal, Entries: entries}, nil
}

// List returns every cloud memory of principal. Empty when the cloud is off.
func (h *Hybrid) List(ctx context.Context, principal domain.Principal) ([]domain.MemoryEntry, error) {
	if !h.cloudEnabled() {
		return []domain.MemoryEntry{}, nil
	}
	entries, err := h.cloud.List(ctx, principal)
	if err != nil {
		metrics.CloudMemoryFailures("list").Inc()
		h.logger.Warn("cloud memory list failed", "err", err)
		return []domain.MemoryEntry{}, nil
	}
	return entries, nil
}

// Delete removes a cloud memory by id. Local rows are append-only. An
// unknown id is reported as domain.ErrNotFound; any other cloud failure is
// logged and degrades to a no-op.
func (h *Hybrid) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("memory delete needs an id: %w", domain.ErrInvalidRequest)
	}
	if !h.cloudEnabled() {
		return nil
	}
	err := h.cloud.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("memory %s: %w", id, domain.ErrNotFound)
	}
	metrics.CloudMemoryFailures("delete").Inc()
	h.logger.Warn("cloud memory delete failed", "id", id, "err", err)
	return nil
}

// Stats merges counts from both stores for one principal. A cloud failure
// reports zero for the cloud side.
func (h *Hybrid) Stats(ctx context.Context, principal domain.Principal) (domain.MemoryStats, error) {
	stats := domain.MemoryStats{
		LocalBySpecialist: map[domain.Specialist]int{},
		CloudEnabled:      h.cloudEnabled(),
	}

	counts, err := h.local.CountMemories(ctx, principal)
	if err != nil {
		return stats, fmt.Errorf("local memory stats: %w", err)
	}
	for agent, n := range counts {
		stats.LocalBySpecialist[agent] = n
		stats.LocalTotal += n
	}

	if stats.CloudEnabled {
		n, err := h.cloud.Count(ctx, principal)
		if err != nil {
			metrics.CloudMemoryFailures("stats").Inc()
			h.logger.Warn("cloud memory stats failed", "err", err)
		} else {
			stats.CloudTotal = n
		}
	}
	return stats, nil
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
