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

// treeCacheTTL keeps cached subtrees short-lived; imports and deletes also
// invalidate eagerly.
const treeCacheTTL = 60 * time.Second

type NodeService interface {
	GetNode(ctx context.Context, id uuid.UUID) (*models.NodeTree, error)
	DeleteNode(ctx context.Context, id uuid.UUID) error
}

type nodeService struct {
	nodeRepo repositories.NodeRepository
	cacheSvc caching.CacheService
}

func NewNodeService(nodeRepo repositories.NodeRepository, cacheSvc caching.CacheService) NodeService {
	return &nodeService{
		nodeRepo: nodeRepo,
		cacheSvc: cacheSvc,
	}
}

// GetNode returns the node and its full subtree with aggregated category
// prices. Cache errors fall through to the database.
func (s *nodeService) GetNode(ctx context.Context, id uuid.UUID) (*models.NodeTree, error) {
	if cached, err := s.cacheSvc.GetNodeTree(ctx, id); cached != nil {
		return cached, nil
	} else if err != nil {
		log.Printf("WARN: tree cache read for %s failed: %v", id, err)
	}

	nodes, err := s.nodeRepo.GetSubtree(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch subtree %s: %w", id, err)
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}

	tree := buildTree(id, nodes)
	aggregate(tree)

	if err := s.cacheSvc.SetNodeTree(ctx, tree, treeCacheTTL); err != nil {
		log.Printf("WARN: tree cache write for %s failed: %v", id, err)
	}
	return tree, nil
}

// DeleteNode removes the node and, through the cascading foreign key, its
// whole subtree in one statement.
func (s *nodeService) DeleteNode(ctx context.Context, id uuid.UUID) error {
	rows, err := s.nodeRepo.DeleteCascade(ctx, id)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := s.cacheSvc.InvalidateTrees(ctx); err != nil {
		log.Printf("WARN: failed to invalidate tree cache after delete: %v", err)
	}
	return nil
}

// buildTree assembles the flat subtree rows into a tree rooted at rootID.
// Categories get a non-nil children slice even when empty; offers keep nil
// so they serialize without a children list.
func buildTree(rootID uuid.UUID, nodes []*models.Node) *models.NodeTree {
	index := make(map[uuid.UUID]*models.NodeTree, len(nodes))
	for _, node := range nodes {
		tree := &models.NodeTree{
			ID:        node.ID,
			Name:      node.Name,
			Kind:      node.Kind,
			Price:     node.Price,
			ParentID:  node.ParentID,
			UpdatedAt: node.UpdatedAt,
		}
		if node.Kind == models.KindCategory {
			tree.Children = []*models.NodeTree{}
		}
		index[node.ID] = tree
	}

	for _, node := range nodes {
		if node.ParentID == nil {
			continue
		}
		if parent, ok := index[*node.ParentID]; ok {
			parent.Children = append(parent.Children, index[node.ID])
		}
	}
	return index[rootID]
}

// aggregate fills in category prices bottom-up. Each category's price is
// the floor of the mean over all offer prices in its subtree, computed from
// the raw sum and count so the floor is applied exactly once per category.
// Categories without offers beneath them keep a null price.
func aggregate(tree *models.NodeTree) (sum int64, count int64) {
	if tree.Kind == models.KindOffer {
		return *tree.Price, 1
	}

	for _, child := range tree.Children {
		childSum, childCount := aggregate(child)
		sum += childSum
		count += childCount
	}

	if count == 0 {
		tree.Price = nil
	} else {
		mean := sum / count
		tree.Price = &mean
	}
	return sum, count
}
