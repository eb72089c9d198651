package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountOpened   = "account.opened"
	ActionDelegateChanged = "account.delegate_changed"
	ActionQuotaReset      = "quota.reset"

	// Payment actions
	ActionPaymentSettled = "payment.settled"
	ActionPaymentDenied  = "payment.denied"
	ActionTransferFailed = "transfer.failed"
)

// Resource constants for audit events.
const (
	ResourceAccount = "account"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryAccess  = "access"
	CategoryLimits  = "limits"
	CategoryPayment = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
