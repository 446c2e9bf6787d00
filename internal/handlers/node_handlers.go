package handlers

import (
	"errors"
	"log"
	"net/http"

	"pricecompare/internal/common"
	"pricecompare/internal/services"

	"github.com/labstack/echo/v4"
)

// NodeHandlers serves subtree reads and cascade deletes
type NodeHandlers struct {
	nodeService services.NodeService
}

func NewNodeHandlers(nodeService services.NodeService) *NodeHandlers {
	return &NodeHandlers{nodeService: nodeService}
}

// GetNode handles GET /nodes/:id
func (h *NodeHandlers) GetNode(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationFailed(c)
	}

	tree, err := h.nodeService.GetNode(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return common.SendItemNotFound(c)
		}
		log.Printf("WARN: get node %s failed: %v", id, err)
		return common.SendServerError(c)
	}
	return c.JSON(http.StatusOK, tree)
}

// DeleteNode handles DELETE /delete/:id
func (h *NodeHandlers) DeleteNode(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationFailed(c)
	}

	if err := h.nodeService.DeleteNode(c.Request().Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return common.SendItemNotFound(c)
		}
		log.Printf("WARN: delete node %s failed: %v", id, err)
		return common.SendServerError(c)
	}
	return c.NoContent(http.StatusOK)
}
