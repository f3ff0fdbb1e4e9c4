package domain

// List of payout destination states. A courier can be paid out only when
// onboarding with the payment processor completed and an account reference
// is on file.
const (
	PayoutNone    PayoutState = "none"
	PayoutPending PayoutState = "pending"
	PayoutReady   PayoutState = "ready"
)

// PayoutState represents the onboarding state of a courier's payout destination.
type PayoutState string

var allowedPayoutStates = [...]PayoutState{PayoutNone, PayoutPending, PayoutReady}

// Valid checks if the PayoutState is valid.
func (s PayoutState) Valid() bool {
	for _, v := range allowedPayoutStates {
		if s == v {
			return true
		}
	}
	return false
}

// PayoutDestination is a tagged variant: None | Pending | Ready(AccountRef).
// AccountRef is only meaningful in the Ready state.
type PayoutDestination struct {
	State      PayoutState
	AccountRef string
}

// Ready reports whether earnings can be transferred to this destination.
func (p PayoutDestination) Ready() bool {
	return p.State == PayoutReady && p.AccountRef != ""
}

// Courier represents a delivery courier together with its payout destination
// and cumulative counters.
type Courier struct {
	ID               int64
	Name             string
	Phone            string
	Payout           PayoutDestination
	ActiveDeliveries int
	TotalDeliveries  int
	Earnings         float64
}

// List of actor roles the core receives from the authentication boundary.
const (
	RoleCustomer = "customer"
	RoleCourier  = "courier"
	RoleAdmin    = "admin"
)

// Identity is an already-authenticated actor. Credential verification
// happens upstream; the core only ever sees this pair.
type Identity struct {
	UserID int64
	Role   string
}
