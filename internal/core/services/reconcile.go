package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

// Snapshot is the index's view of one document-type family at the start of
// a sync run: which units exist, under which target, with which change
// signal. It is rebuilt from the store on every run; the sync engine keeps
// no sync state of its own.
type Snapshot struct {
	signals map[string]string
	targets map[string]map[string]bool
	kinds   map[string]domain.TargetKind
}

// LoadSnapshot queries the store for every row of the given types and
// folds the rows into per-unit signals and per-target unit sets. Chunked
// children collapse into their parent unit through the shared sourceId.
func LoadSnapshot(ctx context.Context, store driven.VectorStore, types []string) (*Snapshot, error) {
	docs, err := store.Query(ctx, driven.RowFilter{Types: types})
	if err != nil {
		return nil, fmt.Errorf("load index snapshot: %w", err)
	}

	s := &Snapshot{
		signals: make(map[string]string),
		targets: make(map[string]map[string]bool),
		kinds:   make(map[string]domain.TargetKind),
	}
	for _, doc := range docs {
		sourceID := doc.SourceID()
		if sourceID == "" {
			continue
		}
		if _, seen := s.signals[sourceID]; !seen {
			s.signals[sourceID] = doc.Signal()
		}

		targetID := doc.Metadata[domain.MetaTargetID]
		if targetID == "" {
			// Rows written before target tracking fall back to their own
			// unit, so they still participate in removal.
			targetID = sourceID
		}
		if s.targets[targetID] == nil {
			s.targets[targetID] = make(map[string]bool)
		}
		s.targets[targetID][sourceID] = true

		if _, known := s.kinds[targetID]; !known {
			if kind := domain.KindForDocumentType(doc.Type()); kind != "" {
				s.kinds[targetID] = kind
			}
		}
	}
	return s, nil
}

// Signals returns the unit-id to change-signal map the loaders consume.
func (s *Snapshot) Signals() map[string]string {
	return s.signals
}

// SourcesFor returns the unit ids recorded under a target, sorted.
func (s *Snapshot) SourcesFor(targetID string) []string {
	ids := make([]string, 0, len(s.targets[targetID]))
	for id := range s.targets[targetID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// KindFor returns the target kind recorded for a target, falling back to
// the caller's kind when the snapshot rows carried no recognizable type.
func (s *Snapshot) KindFor(targetID string, fallback domain.TargetKind) domain.TargetKind {
	if kind, ok := s.kinds[targetID]; ok {
		return kind
	}
	return fallback
}

// TargetIDs returns every target recorded in the snapshot, sorted.
func (s *Snapshot) TargetIDs() []string {
	ids := make([]string, 0, len(s.targets))
	for id := range s.targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Removal records one deleted unit, the target it was recorded under, and
// how many index rows the delete cascaded through.
type Removal struct {
	SourceID string
	TargetID string
	Rows     int
}

// Reconciler applies a load run's outcome to the vector store.
type Reconciler struct {
	store driven.VectorStore
}

func NewReconciler(store driven.VectorStore) *Reconciler {
	return &Reconciler{store: store}
}

// ApplyUpserts replaces each changed unit wholesale. Documents are grouped
// by unit; the unit's old rows are deleted before the new ones are
// inserted, because a re-chunked unit may produce fewer chunks than before
// and a plain per-id upsert would leave stale tail chunks behind.
//
// Deleting a not-yet-indexed unit is a no-op, so retrying after a partial
// failure converges.
func (r *Reconciler) ApplyUpserts(ctx context.Context, docs []domain.Document) error {
	var order []string
	units := make(map[string][]domain.Document)
	for _, doc := range docs {
		sourceID := doc.SourceID()
		if _, seen := units[sourceID]; !seen {
			order = append(order, sourceID)
		}
		units[sourceID] = append(units[sourceID], doc)
	}

	for _, sourceID := range order {
		if _, err := r.store.DeleteBySource(ctx, sourceID); err != nil {
			return fmt.Errorf("replace unit %s: %w", sourceID, err)
		}
		if err := r.store.Upsert(ctx, units[sourceID]); err != nil {
			return fmt.Errorf("upsert unit %s: %w", sourceID, err)
		}
	}
	return nil
}

// RemoveMissing deletes units recorded under a target in the snapshot but
// not seen during this run. Failed units are exempt: a unit that could not
// be fetched is not evidence it was deleted at the source.
func (r *Reconciler) RemoveMissing(ctx context.Context, snap *Snapshot, targetID string, stats domain.LoaderStats) ([]Removal, error) {
	seen := make(map[string]bool)
	for _, ids := range [][]string{stats.Added, stats.Updated, stats.Skipped, stats.Failed} {
		for _, id := range ids {
			seen[id] = true
		}
	}

	var removed []Removal
	for _, sourceID := range snap.SourcesFor(targetID) {
		if seen[sourceID] {
			continue
		}
		rows, err := r.store.DeleteBySource(ctx, sourceID)
		if err != nil {
			return removed, fmt.Errorf("remove unit %s: %w", sourceID, err)
		}
		removed = append(removed, Removal{SourceID: sourceID, TargetID: targetID, Rows: rows})
	}
	return removed, nil
}

// OrphanSweep deletes every unit recorded under targets that are no longer
// enumerated. Returns the removals in deterministic target order.
func (r *Reconciler) OrphanSweep(ctx context.Context, snap *Snapshot, live map[string]bool) ([]Removal, error) {
	var removed []Removal
	for _, targetID := range snap.TargetIDs() {
		if live[targetID] {
			continue
		}
		for _, sourceID := range snap.SourcesFor(targetID) {
			rows, err := r.store.DeleteBySource(ctx, sourceID)
			if err != nil {
				return removed, fmt.Errorf("sweep target %s: %w", targetID, err)
			}
			removed = append(removed, Removal{SourceID: sourceID, TargetID: targetID, Rows: rows})
		}
	}
	return removed, nil
}
