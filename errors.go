package escrow

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Every rejected call leaves
// state untouched and surfaces exactly one of these causes, so callers can
// branch on errors.Is.
var (
	// General errors
	ErrNotFound      = errors.New("escrow: not found")
	ErrAlreadyExists = errors.New("escrow: already exists")
	ErrInvalidInput  = errors.New("escrow: invalid input")
	ErrUnauthorized  = errors.New("escrow: unauthorized")
	ErrForbidden     = errors.New("escrow: forbidden")

	// Validation errors
	ErrZeroAmount         = errors.New("escrow: amount must be greater than zero")
	ErrZeroAddress        = errors.New("escrow: zero address")
	ErrInvalidSpender     = errors.New("escrow: invalid spender")
	ErrHierarchyViolation = errors.New("escrow: limit hierarchy violation (daily <= weekly <= monthly)")

	// Authorization errors
	ErrNotAdmin           = errors.New("escrow: caller is not the administrator")
	ErrNotPayee           = errors.New("escrow: caller is not the payment's payee")
	ErrNotOwner           = errors.New("escrow: caller is not the account owner")
	ErrNotApprovedSpender = errors.New("escrow: caller is not an approved spender")
	ErrNotProvider        = errors.New("escrow: caller is not the service provider")

	// Payment errors
	ErrPaymentNotFound  = errors.New("escrow: payment not found")
	ErrAlreadyCompleted = errors.New("escrow: payment already completed")
	ErrAlreadyRefunded  = errors.New("escrow: payment already refunded")
	ErrCustodyFailed    = errors.New("escrow: token custody transfer failed")

	// Spending-limit errors
	ErrLimitsNotFound       = errors.New("escrow: no spending policy for account")
	ErrLimitsNotActive      = errors.New("escrow: spending limits not active")
	ErrDailyLimitExceeded   = errors.New("escrow: daily limit exceeded")
	ErrWeeklyLimitExceeded  = errors.New("escrow: weekly limit exceeded")
	ErrMonthlyLimitExceeded = errors.New("escrow: monthly limit exceeded")

	// Directory errors
	ErrServiceNotFound  = errors.New("escrow: service not found")
	ErrServiceNotActive = errors.New("escrow: service not active")

	// Store errors
	ErrStoreNotReady     = errors.New("escrow: store not ready")
	ErrStoreClosed       = errors.New("escrow: store is closed")
	ErrTransactionFailed = errors.New("escrow: transaction failed")
	ErrMigrationFailed   = errors.New("escrow: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("escrow: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrLimitsNotFound) ||
		errors.Is(err, ErrServiceNotFound)
}

// IsAuthorizationError returns true if the error is an authorization failure,
// as distinct from not-found or invalid-state conditions.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotAdmin) ||
		errors.Is(err, ErrNotPayee) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrNotApprovedSpender) ||
		errors.Is(err, ErrNotProvider)
}

// IsLimitExceeded returns true if the error is a capacity rejection from any
// spending-limit tier.
func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrDailyLimitExceeded) ||
		errors.Is(err, ErrWeeklyLimitExceeded) ||
		errors.Is(err, ErrMonthlyLimitExceeded)
}

// IsStateConflict returns true if the error is a state-conflict rejection:
// the operation named an entity whose current state forbids the transition.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrAlreadyRefunded) ||
		errors.Is(err, ErrLimitsNotActive) ||
		errors.Is(err, ErrServiceNotActive)
}

// IsRetryable returns true for failures that may succeed on resubmission
// without any corrective action, such as transient store errors.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
