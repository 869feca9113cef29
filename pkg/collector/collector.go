// Package collector implements mark-and-sweep garbage collection of stored
// assets. Liveness is recomputed from scratch on every run: references are
// extracted from the full document corpus (mark), the asset root is walked,
// and the difference is deleted (sweep). Recomputing makes the collector
// self-healing against bookkeeping drift at the cost of a full scan per run.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/bloglite/assetkit/pkg/refscan"
	"github.com/bloglite/assetkit/pkg/storage"
)

// ErrCollectionInProgress is returned when a run is already executing, either
// in this process or in another one holding the file lock.
var ErrCollectionInProgress = errors.New("collection already in progress")

// DocumentSource yields the text bodies whose references keep assets alive.
type DocumentSource interface {
	ReferenceTexts(ctx context.Context) ([]string, error)
}

// AssetStore is the slice of storage the sweep needs. Delete must route the
// relative path through the store's own path confinement before removal.
type AssetStore interface {
	Walk(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, path string) error
}

// Report describes one collection run. It is always consistent with the
// deletions actually performed: a failed delete is excluded from Removed.
type Report struct {
	Total     int `json:"Total"`     // files on disk before deletion
	Used      int `json:"Used"`      // size of the live set
	Removed   int `json:"Removed"`   // files actually deleted
	Remaining int `json:"Remaining"` // files left on disk
}

// Collector deletes on-disk assets no longer referenced by any document.
type Collector struct {
	docs  DocumentSource
	store AssetStore
	log   *slog.Logger

	mu  sync.Mutex   // serializes runs within the process
	flk *flock.Flock // serializes runs across processes; nil disables
}

// New creates a Collector. lockPath names a lock file guarding against
// concurrent runs from other processes; empty disables the file lock.
// logger may be nil.
func New(docs DocumentSource, store AssetStore, lockPath string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Collector{
		docs:  docs,
		store: store,
		log:   logger,
	}
	if lockPath != "" {
		c.flk = flock.New(lockPath)
	}
	return c
}

// Collect runs one mark-and-sweep pass and reports what it did.
//
// Cancellation is honored up to the point the sweep starts: once deletion
// begins the loop runs to completion so the report always matches the actual
// filesystem state. Repeated runs with no intervening writes are idempotent.
func (c *Collector) Collect(ctx context.Context) (Report, error) {
	if !c.mu.TryLock() {
		return Report{}, ErrCollectionInProgress
	}
	defer c.mu.Unlock()

	if c.flk != nil {
		locked, err := c.flk.TryLock()
		if err != nil {
			return Report{}, fmt.Errorf("acquire collection lock: %w", err)
		}
		if !locked {
			return Report{}, ErrCollectionInProgress
		}
		defer func() { _ = c.flk.Unlock() }()
	}

	runID := uuid.NewString()
	log := c.log.With(slog.String("run_id", runID))

	texts, err := c.docs.ReferenceTexts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load document texts: %w", err)
	}

	live := liveSet(refscan.Extract(strings.Join(texts, "\n")))

	disk, err := c.store.Walk(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("walk asset root: %w", err)
	}

	orphans := make([]string, 0)
	for _, path := range disk {
		if _, ok := live[path]; !ok {
			orphans = append(orphans, path)
		}
	}

	log.InfoContext(ctx, "collection marked",
		slog.Int("on_disk", len(disk)),
		slog.Int("live", len(live)),
		slog.Int("orphans", len(orphans)))

	// Last cancellation point before any destructive mutation.
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	removed := 0
	for _, path := range orphans {
		if err := c.store.Delete(ctx, path); err != nil {
			log.WarnContext(ctx, "failed to delete orphan",
				slog.String("path", path),
				slog.Any("error", err))
			continue
		}
		removed++
	}

	report := Report{
		Total:     len(disk),
		Used:      len(live),
		Removed:   removed,
		Remaining: len(disk) - removed,
	}

	log.InfoContext(ctx, "collection swept",
		slog.Int("total", report.Total),
		slog.Int("used", report.Used),
		slog.Int("removed", report.Removed))

	return report, nil
}

// liveSet normalizes extracted references into root-relative paths. A
// reference to a compressed derivative also marks its uploads/ original as
// live; the converse is not required since documents typically embed the
// compressed URL when one exists.
func liveSet(refs map[string]struct{}) map[string]struct{} {
	live := make(map[string]struct{}, len(refs))
	for ref := range refs {
		rel := strings.TrimPrefix(ref, refscan.Prefix)
		live[rel] = struct{}{}
		if rest, ok := strings.CutPrefix(rel, storage.CompressedDir+"/"); ok {
			live[storage.UploadsDir+"/"+rest] = struct{}{}
		}
	}
	return live
}
