package domain

import "time"

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Party holds the contact details of a sender or receiver.
type Party struct {
	Name     string
	Phone    string
	Address  string
	Location *Location
}

// PriceBreakdown is the itemized quote computed once at creation and frozen
// on the delivery. Total is always the exact sum of the components, and
// CourierEarnings + PlatformFee == Total to the cent.
type PriceBreakdown struct {
	Base              float64
	Distance          float64
	UrgencySurcharge  float64
	SizeSurcharge     float64
	ScheduleDiscount  float64 // zero or negative
	MinimumAdjustment float64
	MinimumApplied    bool
	Total             float64
	CourierEarnings   float64
	PlatformFee       float64
}

// TimelineEntry is one immutable record in a delivery's audit trail.
// Entries are append-only and ordered by the transition that produced them.
type TimelineEntry struct {
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EscrowRefs holds the external payment-processor references for a delivery.
// A CaptureID may exist only after a PaymentIntentID, and a TransferID only
// after a CaptureID; the escrow coordinator enforces the ordering.
type EscrowRefs struct {
	CheckoutSessionID string
	PaymentIntentID   string
	CaptureID         string
	TransferID        string
}

// Delivery is the central entity: one package moving from a sender to a
// receiver, with its frozen price quote, escrow payment state and audit
// timeline. The delivery row is the unit of consistency; every mutation is
// a conditional update guarded by the expected prior state.
type Delivery struct {
	ID         int64
	TrackingID string
	Status     Status

	Sender   Party
	Receiver Party

	PackageType        string
	PackageSize        PackageSize
	PackageDescription string
	WeightKg           *float64

	Urgency           Urgency
	ScheduledPickupAt *time.Time

	DistanceKm        float64
	DurationMinutes   int
	DistanceEstimated bool

	Price PriceBreakdown

	CourierID *int64

	PaymentStatus PaymentStatus
	Escrow        EscrowRefs

	CreatedAt           time.Time
	AcceptedAt          *time.Time
	CapturedAt          *time.Time
	CompletedAt         *time.Time
	EstimatedDeliveryAt *time.Time

	Timeline []TimelineEntry
}

// Assigned reports whether a courier holds this delivery.
func (d *Delivery) Assigned() bool {
	return d.CourierID != nil
}

// AssignedTo reports whether the given courier holds this delivery.
func (d *Delivery) AssignedTo(courierID int64) bool {
	return d.CourierID != nil && *d.CourierID == courierID
}
