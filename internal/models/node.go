package models

import (
	"time"

	"github.com/google/uuid"
)

// NodeKind distinguishes leaf offers from grouping categories.
type NodeKind string

const (
	KindOffer    NodeKind = "OFFER"
	KindCategory NodeKind = "CATEGORY"
)

// Valid reports whether the kind is one of the two known values.
func (k NodeKind) Valid() bool {
	return k == KindOffer || k == KindCategory
}

// NameMaxLength is the maximum node name length in code points.
const NameMaxLength = 200

// Node is the persisted catalog entry. Price is stored only for offers;
// a category's price is derived at read time and never written.
type Node struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Kind      NodeKind   `json:"type" db:"kind"`
	Price     *int64     `json:"price" db:"price"`
	ParentID  *uuid.UUID `json:"parentId" db:"parent_id"`
	UpdatedAt time.Time  `json:"date" db:"updated_at"`
}

// NodeTree is a node with its aggregated subtree, as served to clients.
// Children is non-nil (possibly empty) for categories and nil for offers,
// so offers serialize "children": null while categories serialize a list.
type NodeTree struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Kind      NodeKind    `json:"type"`
	Price     *int64      `json:"price"`
	ParentID  *uuid.UUID  `json:"parentId"`
	UpdatedAt time.Time   `json:"date"`
	Children  []*NodeTree `json:"children"`
}

// CatalogStats holds node counts refreshed by the background job.
type CatalogStats struct {
	Total       int64     `json:"total"`
	Offers      int64     `json:"offers"`
	Categories  int64     `json:"categories"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
