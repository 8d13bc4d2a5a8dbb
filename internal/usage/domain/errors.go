package domain

import "errors"

var (
	// ErrIntegrity marks rows that cannot be attributed to exactly one
	// subscription. It is never recovered from.
	ErrIntegrity = errors.New("usage_integrity_violation")

	ErrInvalidKind      = errors.New("invalid_usage_kind")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrRollupInProgress = errors.New("rollup_in_progress")
)
