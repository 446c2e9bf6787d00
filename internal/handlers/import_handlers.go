package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"pricecompare/internal/common"
	"pricecompare/internal/models"
	"pricecompare/internal/services"

	"github.com/labstack/echo/v4"
)

// ImportHandlers handles catalog import requests
type ImportHandlers struct {
	importService services.ImportService
}

func NewImportHandlers(importService services.ImportService) *ImportHandlers {
	return &ImportHandlers{importService: importService}
}

// ImportRequest is the import payload as it arrives on the wire. Ids stay
// strings here; syntactic validation converts them before the service sees
// the batch.
type ImportRequest struct {
	Items      []ImportItemRequest `json:"items"`
	UpdateDate string              `json:"updateDate"`
}

type ImportItemRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
	Type     string  `json:"type"`
	Price    *int64  `json:"price"`
}

// Import handles POST /imports. Every failure mode, syntactic or business,
// maps to the same 400 response; only the logs distinguish them.
func (h *ImportHandlers) Import(c echo.Context) error {
	var req ImportRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationFailed(c)
	}

	batch, err := parseImportRequest(&req)
	if err != nil {
		log.Printf("DEBUG: rejected import batch: %v", err)
		return common.SendValidationFailed(c)
	}

	if err := h.importService.Import(c.Request().Context(), batch); err != nil {
		if services.IsValidationError(err) {
			log.Printf("DEBUG: rejected import batch: %v", err)
		} else {
			log.Printf("WARN: import failed: %v", err)
		}
		return common.SendValidationFailed(c)
	}
	return c.NoContent(http.StatusOK)
}

func parseImportRequest(req *ImportRequest) (*models.ImportBatch, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("items are required")
	}
	if req.UpdateDate == "" {
		return nil, fmt.Errorf("updateDate is required")
	}
	updateDate, err := time.Parse(time.RFC3339, req.UpdateDate)
	if err != nil {
		return nil, fmt.Errorf("updateDate must be RFC3339")
	}

	batch := &models.ImportBatch{UpdateDate: updateDate}
	for i := range req.Items {
		item, err := parseImportItem(&req.Items[i])
		if err != nil {
			return nil, err
		}
		batch.Items = append(batch.Items, item)
	}
	return batch, nil
}

func parseImportItem(raw *ImportItemRequest) (*models.ImportItem, error) {
	id, err := common.ValidateUUID(raw.ID, "id")
	if err != nil {
		return nil, err
	}
	if err := common.ValidateName(raw.Name, models.NameMaxLength); err != nil {
		return nil, err
	}
	kind := models.NodeKind(raw.Type)
	if !kind.Valid() {
		return nil, fmt.Errorf("type must be OFFER or CATEGORY")
	}

	item := &models.ImportItem{
		ID:    id,
		Name:  raw.Name,
		Kind:  kind,
		Price: raw.Price,
	}
	if raw.ParentID != nil {
		parentID, err := common.ValidateUUID(*raw.ParentID, "parentId")
		if err != nil {
			return nil, err
		}
		item.ParentID = &parentID
	}
	return item, nil
}
