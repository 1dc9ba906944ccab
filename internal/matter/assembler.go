// Package matter assembles the per-turn snapshot of a case that every
// specialist reads, and renders it as prompt text.
package matter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"lawyrs/internal/domain"
)

const defaultSliceTimeout = 5 * time.Second

// MemoryReader is the targeted local read the assembler needs.
type MemoryReader interface {
	GetMemories(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryEntry, error)
}

// HistoryReader loads the recent transcript of a session.
type HistoryReader interface {
	GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error)
}

type Config struct {
	Cases        domain.CaseData
	Memory       MemoryReader
	History      HistoryReader
	HistoryLimit int
	SliceTimeout time.Duration
	Logger       *slog.Logger
}

// Assembler builds a MatterContext. The case lookup is the only query whose
// failure fails the assembly; every other slice degrades to empty.
type Assembler struct {
	cases        domain.CaseData
	memory       MemoryReader
	history      HistoryReader
	historyLimit int
	sliceTimeout time.Duration
	logger       *slog.Logger
}

func NewAssembler(cfg Config) *Assembler {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.SliceTimeout <= 0 {
		cfg.SliceTimeout = defaultSliceTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Assembler{
		cases:        cfg.Cases,
		memory:       cfg.Memory,
		history:      cfg.History,
		historyLimit: cfg.HistoryLimit,
		sliceTimeout: cfg.SliceTimeout,
		logger:       cfg.Logger,
	}
}

// Assemble returns the all-empty context when caseID is nil or unknown.
func (a *Assembler) Assemble(ctx context.Context, caseID *int64, sessionID string) (domain.MatterContext, error) {
	mc := domain.EmptyMatterContext()
	if caseID == nil {
		return mc, nil
	}

	rec, err := a.cases.GetCase(ctx, *caseID)
	if err != nil {
		return domain.EmptyMatterContext(), fmt.Errorf("case lookup %d: %w", *caseID, err)
	}
	if rec == nil {
		a.logger.Debug("case not found, using empty matter context", "case_id", *caseID)
		return mc, nil
	}

	id := rec.ID
	mc.CaseID = &id
	mc.CaseNumber = strPtr(rec.CaseNumber)
	mc.Title = strPtr(rec.Title)
	mc.CaseType = strPtr(rec.CaseType)
	mc.Status = strPtr(rec.Status)
	mc.ClientName = strPtr(rec.ClientName)
	mc.OpposingParty = strPtr(rec.OpposingParty)
	mc.Court = strPtr(rec.Court)
	mc.Judge = strPtr(rec.Judge)
	mc.Description = strPtr(rec.Description)

	// Each goroutine writes only its own field of mc.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		sctx, cancel := context.WithTimeout(egCtx, a.sliceTimeout)
		defer cancel()
		docs, err := a.cases.RecentDocuments(sctx, id, domain.MaxContextDocuments)
		if a.tolerate("documents", id, err) {
			mc.Documents = nonNil(docs)
		}
		return nil
	})
	eg.Go(func() error {
		sctx, cancel := context.WithTimeout(egCtx, a.sliceTimeout)
		defer cancel()
		tasks, err := a.cases.UpcomingTasks(sctx, id, domain.MaxContextTasks)
		if a.tolerate("tasks", id, err) {
			mc.Tasks = nonNil(tasks)
		}
		return nil
	})
	eg.Go(func() error {
		sctx, cancel := context.WithTimeout(egCtx, a.sliceTimeout)
		defer cancel()
		events, err := a.cases.UpcomingEvents(sctx, id, domain.MaxContextEvents)
		if a.tolerate("events", id, err) {
			mc.Events = nonNil(events)
		}
		return nil
	})
	eg.Go(func() error {
		sctx, cancel := context.WithTimeout(egCtx, a.sliceTimeout)
		defer cancel()
		billing, err := a.cases.Billing(sctx, id)
		if a.tolerate("billing", id, err) {
			mc.Billing = billing
		}
		return nil
	})
	if a.memory != nil {
		eg.Go(func() error {
			mc.PriorResearch = a.priorMemory(egCtx, domain.Researcher, id)
			return nil
		})
		eg.Go(func() error {
			mc.PriorAnalysis = a.priorMemory(egCtx, domain.Analyst, id)
			return nil
		})
	}
	if a.history != nil && sessionID != "" {
		mc.TranscriptLoaded = true
		eg.Go(func() error {
			sctx, cancel := context.WithTimeout(egCtx, a.sliceTimeout)
			defer cancel()
			turns, err := a.history.GetHistory(sctx, sessionID, a.historyLimit)
			if a.tolerate("transcript", id, err) {
				mc.Transcript = nonNil(turns)
			}
			return nil
		})
	}

	_ = eg.Wait()
	return mc, nil
}

func (a *Assembler) priorMemory(ctx context.Context, s domain.Specialist, caseID int64) []domain.MemoryEntry {
	sctx, cancel := context.WithTimeout(ctx, a.sliceTimeout)
	defer cancel()
	entries, err := a.memory.GetMemories(sctx, domain.MemoryQuery{
		Specialist: s,
		CaseID:     &caseID,
		Limit:      domain.MaxContextMemories,
	})
	if !a.tolerate("memory:"+string(s), caseID, err) {
		return []domain.MemoryEntry{}
	}
	return nonNil(entries)
}

// tolerate logs a failed slice and reports whether its result is usable.
func (a *Assembler) tolerate(slice string, caseID int64, err error) bool {
	if err == nil {
		return true
	}
	a.logger.Warn("matter context slice failed, leaving it empty",
		"slice", slice,
		"case_id", caseID,
		"err", err,
	)
	return false
}

func strPtr(s string) *string { return &s }

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
