package common

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the wire shape for every error the API returns.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendValidationFailed sends the uniform 400 body used for every rejected
// import and malformed request.
func SendValidationFailed(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Code: http.StatusBadRequest, Message: "Validation Failed"})
}

// SendItemNotFound sends the 404 body for reads and deletes of absent nodes.
func SendItemNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Code: http.StatusNotFound, Message: "Item not found"})
}

// SendServerError sends a generic 500 body.
func SendServerError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: http.StatusInternalServerError, Message: "Internal error"})
}

// ValidateUUID validates UUID format with explicit structural checks before
// handing off to the parser, so error messages name the actual problem.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	if len(idStr) != 36 {
		return uuid.Nil, fmt.Errorf("%s must be exactly 36 characters (including hyphens)", fieldName)
	}

	for _, pos := range []int{8, 13, 18, 23} {
		if idStr[pos] != '-' {
			return uuid.Nil, fmt.Errorf("%s has invalid UUID format: hyphens must be at positions 9, 14, 19, and 24", fieldName)
		}
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s contains invalid characters: %v", fieldName, err)
	}
	return id, nil
}

// ValidateName enforces the required, bounded-length node name. The bound is
// in code points, not bytes.
func ValidateName(name string, maxLength int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > maxLength {
		return fmt.Errorf("name cannot exceed %d characters", maxLength)
	}
	return nil
}
