package models

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusApproved  BookingStatus = "APPROVED"
	StatusRejected  BookingStatus = "REJECTED"
	StatusCancelled BookingStatus = "CANCELLED"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

// Lifecycle is the soft-delete state shared by rooms, users and rules.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "ACTIVE"
	LifecycleRetired  Lifecycle = "RETIRED"
	LifecycleDisabled Lifecycle = "DISABLED"
	LifecycleInactive Lifecycle = "INACTIVE"
)

// Audit entity types and actions.
const (
	EntityBooking = "BOOKING"
	EntityRule    = "RECURRING_RULE"

	ActionCreate     = "CREATE"
	ActionApprove    = "APPROVE"
	ActionReject     = "REJECT"
	ActionCancel     = "CANCEL"
	ActionDeactivate = "DEACTIVATE"
)

const (
	// DefaultHorizonDays is how far ahead the recurring processor materializes bookings.
	DefaultHorizonDays = 7

	// DefaultRecurringRunHour is the local hour of the daily expansion run.
	DefaultRecurringRunHour = 2

	// DefaultDispatcherQueueSize bounds pending fire-and-forget tasks.
	DefaultDispatcherQueueSize = 1000

	// DefaultRecentAuditLimit caps audit queries without an explicit limit.
	DefaultRecentAuditLimit = 50
)
