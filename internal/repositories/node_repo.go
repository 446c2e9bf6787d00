package repositories

import (
	"context"
	"errors"
	"fmt"

	"pricecompare/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the subset of pgxpool.Pool the repositories need. pgxmock
// pools satisfy it as well, which keeps repository tests off a live server.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type NodeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Node, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Node, error)
	GetWithAncestors(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Node, error)
	GetSubtree(ctx context.Context, rootID uuid.UUID) ([]*models.Node, error)
	UpsertAll(ctx context.Context, nodes []*models.Node) error
	DeleteCascade(ctx context.Context, id uuid.UUID) (int64, error)
	CountByKind(ctx context.Context) (map[models.NodeKind]int64, error)
	CountOrphans(ctx context.Context) (int64, error)
}

type nodeRepo struct {
	db Database
}

func NewNodeRepo(db Database) NodeRepository {
	return &nodeRepo{db: db}
}

func scanNode(row pgx.Row) (*models.Node, error) {
	node := &models.Node{}
	err := row.Scan(&node.ID, &node.Name, &node.Kind, &node.Price, &node.ParentID, &node.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func collectNodes(rows pgx.Rows) ([]*models.Node, error) {
	defer rows.Close()

	var nodes []*models.Node
	for rows.Next() {
		node := &models.Node{}
		if err := rows.Scan(&node.ID, &node.Name, &node.Kind, &node.Price, &node.ParentID, &node.UpdatedAt); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (r *nodeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Node, error) {
	query := `
		SELECT id, name, kind, price, parent_id, updated_at
		FROM nodes
		WHERE id = $1
	`
	return scanNode(r.db.QueryRow(ctx, query, id))
}

func (r *nodeRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Node, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*models.Node{}, nil
	}

	query := `
		SELECT id, name, kind, price, parent_id, updated_at
		FROM nodes
		WHERE id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	nodes, err := collectNodes(rows)
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]*models.Node, len(nodes))
	for _, node := range nodes {
		result[node.ID] = node
	}
	return result, nil
}

// GetWithAncestors fetches the given ids plus every transitive ancestor of
// theirs, in one recursive query. The import resolver needs the chains to
// rule out re-parenting a node under its own descendant.
func (r *nodeRepo) GetWithAncestors(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Node, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*models.Node{}, nil
	}

	query := `
		WITH RECURSIVE chain AS (
			SELECT id, name, kind, price, parent_id, updated_at
			FROM nodes
			WHERE id = ANY($1)
			UNION
			SELECT n.id, n.name, n.kind, n.price, n.parent_id, n.updated_at
			FROM nodes n
			JOIN chain c ON n.id = c.parent_id
		)
		SELECT id, name, kind, price, parent_id, updated_at FROM chain
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	nodes, err := collectNodes(rows)
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]*models.Node, len(nodes))
	for _, node := range nodes {
		result[node.ID] = node
	}
	return result, nil
}

// GetSubtree returns the node and all of its transitive descendants as a
// flat list. An unknown root yields an empty list, not an error.
func (r *nodeRepo) GetSubtree(ctx context.Context, rootID uuid.UUID) ([]*models.Node, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id, name, kind, price, parent_id, updated_at
			FROM nodes
			WHERE id = $1
			UNION ALL
			SELECT n.id, n.name, n.kind, n.price, n.parent_id, n.updated_at
			FROM nodes n
			JOIN subtree s ON n.parent_id = s.id
		)
		SELECT id, name, kind, price, parent_id, updated_at FROM subtree
	`
	rows, err := r.db.Query(ctx, query, rootID)
	if err != nil {
		return nil, err
	}
	return collectNodes(rows)
}

// UpsertAll writes every node in one transaction. Callers must order the
// slice parent-before-child so the parent_id foreign key holds for rows that
// are new in this batch. kind is deliberately left out of the update set:
// the resolver rejects kind changes, and the row keeps its original value
// even if a bug lets one through.
func (r *nodeRepo) UpsertAll(ctx context.Context, nodes []*models.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO nodes (id, name, kind, price, parent_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    parent_id = EXCLUDED.parent_id,
		    updated_at = EXCLUDED.updated_at
	`
	for _, node := range nodes {
		if _, err := tx.Exec(ctx, query, node.ID, node.Name, node.Kind, node.Price, node.ParentID, node.UpdatedAt); err != nil {
			return fmt.Errorf("upsert node %s: %w", node.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import transaction: %w", err)
	}
	return nil
}

// DeleteCascade removes the node; descendants go with it through the
// ON DELETE CASCADE foreign key. Returns the number of directly deleted
// rows (0 or 1).
func (r *nodeRepo) DeleteCascade(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *nodeRepo) CountByKind(ctx context.Context) (map[models.NodeKind]int64, error) {
	query := `SELECT kind, COUNT(*) FROM nodes GROUP BY kind`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.NodeKind]int64)
	for rows.Next() {
		var kind models.NodeKind
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

// CountOrphans reports rows whose parent_id no longer resolves. The foreign
// key makes this impossible; the integrity audit job still checks.
func (r *nodeRepo) CountOrphans(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM nodes n
		LEFT JOIN nodes p ON n.parent_id = p.id
		WHERE n.parent_id IS NOT NULL AND p.id IS NULL
	`
	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// IsNotFound reports whether err is a no-rows lookup result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
