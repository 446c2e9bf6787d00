package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportItem is one syntactically valid entry of an import batch. Price
// semantics (offer/category coupling) are checked by the import service,
// not here.
type ImportItem struct {
	ID       uuid.UUID
	Name     string
	ParentID *uuid.UUID
	Kind     NodeKind
	Price    *int64
}

// ImportBatch is one import request: the entries plus the shared timestamp
// stamped onto every node the batch touches.
type ImportBatch struct {
	Items      []*ImportItem
	UpdateDate time.Time
}
