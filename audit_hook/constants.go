package audithook

// Action constants for audit events.
const (
	// Payment actions
	ActionPaymentInitiated = "payment.initiated"
	ActionPaymentCompleted = "payment.completed"
	ActionPaymentRefunded  = "payment.refunded"

	// Spending-limit actions
	ActionLimitSet         = "limit.set"
	ActionSpendingRecorded = "spending.recorded"
	ActionLimitExceeded    = "limit.exceeded"
	ActionSpenderApproved  = "spender.approved"
	ActionSpenderRevoked   = "spender.revoked"

	// Directory actions
	ActionServiceRegistered = "service.registered"
	ActionServiceUpdated    = "service.updated"
	ActionServiceVerified   = "service.verified"
	ActionServiceRequest    = "service.request"
)

// Resource constants for audit events.
const (
	ResourcePayment = "payment"
	ResourceLimits  = "limits"
	ResourceSpender = "spender"
	ResourceService = "service"
)

// Category constants for audit events.
const (
	CategoryPayment   = "payment"
	CategorySpending  = "spending"
	CategoryDirectory = "directory"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
