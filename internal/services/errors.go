package services

import "errors"

// Business-rule failures surfaced by Import. The transport layer collapses
// all of them into one validation-failed response; the distinct values exist
// for logging and for tests.
var (
	ErrDuplicateID       = errors.New("duplicate id in import batch")
	ErrInvalidPrice      = errors.New("price does not match item type")
	ErrUnknownParent     = errors.New("parent id does not resolve to any node")
	ErrInvalidParentType = errors.New("parent must be a category")
	ErrTypeImmutable     = errors.New("item type cannot change across imports")
	ErrCycle             = errors.New("parent references form a cycle")
)

// ErrNotFound is returned by reads and deletes of an absent node.
var ErrNotFound = errors.New("node not found")

// IsValidationError reports whether err belongs to the business-rule family
// that Import maps to a 400 response.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrDuplicateID,
		ErrInvalidPrice,
		ErrUnknownParent,
		ErrInvalidParentType,
		ErrTypeImmutable,
		ErrCycle,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
