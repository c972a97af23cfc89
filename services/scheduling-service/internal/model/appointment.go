package model

import "time"

// ScheduleState is the customer-facing confirmation axis of an appointment.
type ScheduleState string

const (
	StateDraft             ScheduleState = "DRAFT"
	StateInternalConfirmed ScheduleState = "INTERNAL_CONFIRMED"
	StateSentToCustomer    ScheduleState = "SENT_TO_CUSTOMER"
	StateCustomerConfirmed ScheduleState = "CUSTOMER_CONFIRMED"
	StateCustomerDeclined  ScheduleState = "CUSTOMER_DECLINED"
	StateCancelled         ScheduleState = "CANCELLED"
)

// DispatchStatus tracks field-operations progress, orthogonal to ScheduleState.
type DispatchStatus string

const (
	DispatchUnassigned DispatchStatus = "UNASSIGNED"
	DispatchAssigned   DispatchStatus = "ASSIGNED"
	DispatchInRoute    DispatchStatus = "IN_ROUTE"
	DispatchComplete   DispatchStatus = "COMPLETE"
)

// ReleasedStates are the schedule states that free an appointment's slot for
// overlap purposes. A released appointment never blocks another booking.
var ReleasedStates = []ScheduleState{StateCancelled, StateCustomerDeclined}

func ValidScheduleState(s ScheduleState) bool {
	switch s {
	case StateDraft, StateInternalConfirmed, StateSentToCustomer,
		StateCustomerConfirmed, StateCustomerDeclined, StateCancelled:
		return true
	}
	return false
}

func ValidDispatchStatus(s DispatchStatus) bool {
	switch s {
	case DispatchUnassigned, DispatchAssigned, DispatchInRoute, DispatchComplete:
		return true
	}
	return false
}

// Released reports whether the state frees the slot.
func (s ScheduleState) Released() bool {
	return s == StateCancelled || s == StateCustomerDeclined
}

type Appointment struct {
	ID         string
	CustomerID string
	VehicleID  string
	TechID     string

	SlotStart          time.Time
	SlotEnd            time.Time
	ArrivalWindowStart *time.Time
	ArrivalWindowEnd   *time.Time
	WindowLockedAt     *time.Time

	ScheduleState  ScheduleState
	DispatchStatus DispatchStatus
	SchedulingMode string

	Address string
	Notes   string

	CustomerConfirmToken   string
	CustomerConfirmExpires *time.Time
	CustomerConfirmedAt    *time.Time

	Services []ServiceItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceItem is an immutable snapshot of one ordered service line.
type ServiceItem struct {
	Kind           string
	Name           string
	Qty            int
	UnitPriceCents int
	Notes          string
}

// ServiceKinds are the accepted line-item kinds.
var ServiceKinds = []string{"TIRE_SWAP", "MOUNT_BALANCE", "TPMS", "ROTATION", "OIL_CHANGE", "OTHER"}

func ValidServiceKind(kind string) bool {
	for _, k := range ServiceKinds {
		if k == kind {
			return true
		}
	}
	return false
}
