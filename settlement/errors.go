package settlement

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by engine operations. Callers match with
// errors.Is.
var (
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrNoParticipants      = errors.New("expense has no participants")
	ErrUnknownParticipant  = errors.New("participant is not a trip member")
	ErrNonPositiveWeight   = errors.New("weight must be positive")
	ErrUnassignedItem      = errors.New("item is not assigned to any participant")
	ErrNonPositiveExtra    = errors.New("extra amount must be positive")
	ErrDiscountExceedsBase = errors.New("discount exceeds its base")
	ErrUnknownSplitType    = errors.New("unknown split type")
	ErrUnknownItem         = errors.New("extra references an unknown item")
	ErrTransferNotFound    = errors.New("transfer not found")

	// ErrShareConservation means allocated shares did not sum to the
	// expense amount. This is an algorithm or data-corruption bug, never
	// a user error, and is surfaced loudly.
	ErrShareConservation = errors.New("allocated shares do not sum to expense amount")
)

// ValidationError describes one problem found while validating an expense
// before allocation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}
