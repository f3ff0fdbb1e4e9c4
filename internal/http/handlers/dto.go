package handlers

import "time"

type partyDTO struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone,omitempty"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type createDeliveryRequest struct {
	Sender             partyDTO   `json:"sender"`
	Receiver           partyDTO   `json:"receiver"`
	PackageType        string     `json:"package_type"`
	PackageSize        string     `json:"package_size"`
	PackageDescription string     `json:"package_description,omitempty"`
	WeightKg           *float64   `json:"weight_kg,omitempty"`
	Urgency            string     `json:"urgency"`
	ScheduledPickupAt  *time.Time `json:"scheduled_pickup_at,omitempty"`
	DistanceKm         float64    `json:"distance_km,omitempty"`
}

type advanceDeliveryRequest struct {
	Status string `json:"status"`
}

type cancelDeliveryRequest struct {
	Reason string `json:"reason,omitempty"`
}

type priceDTO struct {
	Base              float64 `json:"base"`
	Distance          float64 `json:"distance"`
	UrgencySurcharge  float64 `json:"urgency_surcharge"`
	SizeSurcharge     float64 `json:"size_surcharge"`
	ScheduleDiscount  float64 `json:"schedule_discount"`
	MinimumAdjustment float64 `json:"minimum_adjustment"`
	MinimumApplied    bool    `json:"minimum_applied"`
	Total             float64 `json:"total"`
	CourierEarnings   float64 `json:"courier_earnings"`
	PlatformFee       float64 `json:"platform_fee"`
}

type timelineEntryDTO struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type deliveryDTO struct {
	TrackingID          string             `json:"tracking_id"`
	Status              string             `json:"status"`
	Sender              partyDTO           `json:"sender"`
	Receiver            partyDTO           `json:"receiver"`
	PackageType         string             `json:"package_type,omitempty"`
	PackageSize         string             `json:"package_size"`
	PackageDescription  string             `json:"package_description,omitempty"`
	WeightKg            *float64           `json:"weight_kg,omitempty"`
	Urgency             string             `json:"urgency"`
	ScheduledPickupAt   *time.Time         `json:"scheduled_pickup_at,omitempty"`
	DistanceKm          float64            `json:"distance_km"`
	DurationMinutes     int                `json:"duration_minutes"`
	DistanceEstimated   bool               `json:"distance_estimated"`
	Price               priceDTO           `json:"price"`
	CourierID           *int64             `json:"courier_id,omitempty"`
	PaymentStatus       string             `json:"payment_status"`
	CreatedAt           time.Time          `json:"created_at"`
	AcceptedAt          *time.Time         `json:"accepted_at,omitempty"`
	CompletedAt         *time.Time         `json:"completed_at,omitempty"`
	EstimatedDeliveryAt *time.Time         `json:"estimated_delivery_at,omitempty"`
	Timeline            []timelineEntryDTO `json:"timeline"`
}

type quoteRequest struct {
	Origin            *locationDTO `json:"origin,omitempty"`
	Destination       *locationDTO `json:"destination,omitempty"`
	DistanceKm        float64      `json:"distance_km,omitempty"`
	PackageSize       string       `json:"package_size"`
	Urgency           string       `json:"urgency"`
	ScheduledPickupAt *time.Time   `json:"scheduled_pickup_at,omitempty"`
}

type locationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type quoteResponse struct {
	DistanceKm          float64   `json:"distance_km"`
	DurationMinutes     int       `json:"duration_minutes"`
	DistanceEstimated   bool      `json:"distance_estimated"`
	Price               priceDTO  `json:"price"`
	EstimatedDeliveryAt time.Time `json:"estimated_delivery_at"`
}

type pricingConfigResponse struct {
	BasePrice          float64            `json:"base_price"`
	PricePerKm         float64            `json:"price_per_km"`
	MinimumPrice       float64            `json:"minimum_price"`
	CourierShare       float64            `json:"courier_share"`
	UrgencyMultipliers map[string]float64 `json:"urgency_multipliers"`
	SizeMultipliers    map[string]float64 `json:"size_multipliers"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type releasePaymentRequest struct {
	TrackingID string `json:"tracking_id"`
	Action     string `json:"action"` // "capture" or "refund"
}

type registerCourierRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type courierDTO struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Phone            string  `json:"phone,omitempty"`
	PayoutState      string  `json:"payout_state"`
	ActiveDeliveries int     `json:"active_deliveries"`
	TotalDeliveries  int     `json:"total_deliveries"`
	Earnings         float64 `json:"earnings"`
}

type setPayoutRequest struct {
	State      string `json:"state"`
	AccountRef string `json:"account_ref,omitempty"`
}

type earningsResponse struct {
	Courier        courierDTO `json:"courier"`
	DeliveredCount int        `json:"delivered_count"`
	InFlightCount  int        `json:"in_flight_count"`
}

type deliveriesResponse struct {
	Deliveries []deliveryDTO `json:"deliveries"`
}
