package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"pricecompare/internal/caching"
	"pricecompare/internal/models"
	"pricecompare/internal/repositories"

	"github.com/google/uuid"
)

type ImportService interface {
	Import(ctx context.Context, batch *models.ImportBatch) error
}

type importService struct {
	nodeRepo   repositories.NodeRepository
	cacheSvc   caching.CacheService
	archiveSvc ArchiveService
}

// NewImportService wires the import pipeline. archiveSvc may be nil when
// batch archiving is not configured.
func NewImportService(nodeRepo repositories.NodeRepository, cacheSvc caching.CacheService, archiveSvc ArchiveService) ImportService {
	return &importService{
		nodeRepo:   nodeRepo,
		cacheSvc:   cacheSvc,
		archiveSvc: archiveSvc,
	}
}

// Import validates the batch, resolves every entry's parent against both
// the batch itself and the persisted tree, and writes the resolved nodes in
// one transaction. Any failure leaves the store untouched.
func (s *importService) Import(ctx context.Context, batch *models.ImportBatch) error {
	for _, item := range batch.Items {
		if err := validateItem(item); err != nil {
			return err
		}
	}

	items, fetchIDs, err := normalizeBatch(batch.Items)
	if err != nil {
		return err
	}

	existing, err := s.nodeRepo.GetWithAncestors(ctx, fetchIDs)
	if err != nil {
		return fmt.Errorf("prefetch existing nodes: %w", err)
	}

	resolver := newBatchResolver(items, existing, batch.UpdateDate)
	resolved, err := resolver.resolveAll()
	if err != nil {
		return err
	}

	if err := s.nodeRepo.UpsertAll(ctx, resolved); err != nil {
		return err
	}

	if err := s.cacheSvc.InvalidateTrees(ctx); err != nil {
		log.Printf("WARN: failed to invalidate tree cache after import: %v", err)
	}
	if s.archiveSvc != nil {
		if err := s.archiveSvc.ArchiveBatch(ctx, batch); err != nil {
			log.Printf("WARN: failed to archive import batch: %v", err)
		}
	}
	return nil
}

// validateItem checks the price/kind coupling of a single entry: offers
// carry a non-negative price, categories carry none.
func validateItem(item *models.ImportItem) error {
	switch item.Kind {
	case models.KindCategory:
		if item.Price != nil {
			return fmt.Errorf("%w: category %s has a price", ErrInvalidPrice, item.ID)
		}
	case models.KindOffer:
		if item.Price == nil || *item.Price < 0 {
			return fmt.Errorf("%w: offer %s needs a non-negative price", ErrInvalidPrice, item.ID)
		}
	}
	return nil
}

// normalizeBatch indexes the batch by id, rejecting duplicates, and collects
// the ids that must be prefetched from storage: every batch id (for the
// type-immutability check) plus every parent id that is not itself in the
// batch.
func normalizeBatch(items []*models.ImportItem) (map[uuid.UUID]*models.ImportItem, []uuid.UUID, error) {
	index := make(map[uuid.UUID]*models.ImportItem, len(items))
	for _, item := range items {
		if _, ok := index[item.ID]; ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
		}
		index[item.ID] = item
	}

	fetchIDs := make([]uuid.UUID, 0, len(index))
	for id := range index {
		fetchIDs = append(fetchIDs, id)
	}
	for _, item := range items {
		if item.ParentID == nil {
			continue
		}
		if _, inBatch := index[*item.ParentID]; !inBatch {
			fetchIDs = append(fetchIDs, *item.ParentID)
		}
	}
	return index, fetchIDs, nil
}

type resolveState int

const (
	stateUnvisited resolveState = iota
	stateResolving
	stateResolved
)

// batchResolver turns batch entries into persistable nodes, resolving each
// entry's parent before the entry itself. Lookups go through one uniform
// table: nodes already resolved from this batch shadow the storage snapshot.
type batchResolver struct {
	items      map[uuid.UUID]*models.ImportItem
	existing   map[uuid.UUID]*models.Node
	resolved   map[uuid.UUID]*models.Node
	state      map[uuid.UUID]resolveState
	order      []*models.Node
	updateDate time.Time
}

func newBatchResolver(items map[uuid.UUID]*models.ImportItem, existing map[uuid.UUID]*models.Node, updateDate time.Time) *batchResolver {
	return &batchResolver{
		items:      items,
		existing:   existing,
		resolved:   make(map[uuid.UUID]*models.Node, len(items)),
		state:      make(map[uuid.UUID]resolveState, len(items)),
		order:      make([]*models.Node, 0, len(items)),
		updateDate: updateDate,
	}
}

// resolveAll resolves every batch entry. Iteration order over the map is
// arbitrary; parent-first recursion makes the outcome identical for any
// permutation of the same batch.
func (r *batchResolver) resolveAll() ([]*models.Node, error) {
	for id := range r.items {
		if err := r.resolve(id); err != nil {
			return nil, err
		}
	}
	return r.order, nil
}

func (r *batchResolver) resolve(id uuid.UUID) error {
	switch r.state[id] {
	case stateResolved:
		return nil
	case stateResolving:
		// Unreachable for well-formed input (parents point at batch ids or
		// persisted ids, never forward declarations), but fatal if hit.
		return fmt.Errorf("%w: at %s", ErrCycle, id)
	}
	r.state[id] = stateResolving

	item := r.items[id]
	if item.ParentID != nil {
		pid := *item.ParentID
		if _, inBatch := r.items[pid]; inBatch {
			if err := r.resolve(pid); err != nil {
				return err
			}
		}
		parent := r.lookup(pid)
		if parent == nil {
			return fmt.Errorf("%w: %s referenced by %s", ErrUnknownParent, pid, id)
		}
		if parent.Kind != models.KindCategory {
			return fmt.Errorf("%w: %s is an offer", ErrInvalidParentType, pid)
		}
		if err := r.checkAncestry(id, parent); err != nil {
			return err
		}
	}

	if prev, ok := r.existing[id]; ok && prev.Kind != item.Kind {
		return fmt.Errorf("%w: %s is %s", ErrTypeImmutable, id, prev.Kind)
	}

	node := &models.Node{
		ID:        item.ID,
		Name:      item.Name,
		Kind:      item.Kind,
		Price:     item.Price,
		ParentID:  item.ParentID,
		UpdatedAt: r.updateDate,
	}
	r.resolved[id] = node
	r.order = append(r.order, node)
	r.state[id] = stateResolved
	return nil
}

// lookup resolves an id through the batch overlay first, then the storage
// snapshot prefetched with ancestor chains.
func (r *batchResolver) lookup(id uuid.UUID) *models.Node {
	if node, ok := r.resolved[id]; ok {
		return node
	}
	if node, ok := r.existing[id]; ok {
		return node
	}
	return nil
}

// checkAncestry walks up from the prospective parent and fails if the chain
// passes through the entry itself, which would re-parent a node under its
// own descendant. The snapshot includes every ancestor of the fetched ids,
// so the walk never needs another round-trip. Revisiting a chain member
// means the batch closes a loop somewhere above the entry; that is just as
// fatal, and the seen set keeps the walk finite.
func (r *batchResolver) checkAncestry(id uuid.UUID, parent *models.Node) error {
	seen := make(map[uuid.UUID]bool)
	for ancestor := parent; ancestor != nil; {
		if ancestor.ID == id {
			return fmt.Errorf("%w: %s is a descendant of itself", ErrCycle, id)
		}
		if seen[ancestor.ID] {
			return fmt.Errorf("%w: in ancestors of %s", ErrCycle, id)
		}
		seen[ancestor.ID] = true
		if ancestor.ParentID == nil {
			return nil
		}
		next := *ancestor.ParentID
		// A batch entry higher up the chain carries the parent that will be
		// persisted, which may differ from the snapshot row.
		if item, ok := r.items[next]; ok {
			ancestor = &models.Node{ID: item.ID, Kind: item.Kind, ParentID: item.ParentID}
			continue
		}
		ancestor = r.lookup(next)
	}
	return nil
}
