package domain

// List of delivery statuses. A delivery walks
// pending → accepted → picked_up → in_transit → delivered,
// with cancelled reachable from every non-terminal state.
const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// List of payment statuses.
const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
	PaymentRefunded   PaymentStatus = "refunded"
)

type (
	// Status represents the lifecycle status of a delivery.
	Status string
	// PaymentStatus represents the escrow payment status of a delivery.
	PaymentStatus string
)

// transitions is the canonical transition table. Absent source or target
// means the edge is illegal; delivered and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
	StatusDelivered: {},
	StatusCancelled: {},
}

// Valid checks if the Status is a known delivery status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether s → target is a legal edge.
// Self-transitions are illegal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

var allowedPaymentStatuses = [...]PaymentStatus{
	PaymentUnpaid, PaymentAuthorized, PaymentPaid, PaymentRefunded,
}

// Valid checks if the PaymentStatus is valid.
func (p PaymentStatus) Valid() bool {
	for _, v := range allowedPaymentStatuses {
		if p == v {
			return true
		}
	}
	return false
}
