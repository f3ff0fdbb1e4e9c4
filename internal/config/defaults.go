package config

import "time"

const (
	defaultPort             = 8080
	defaultOperationTimeout = 3 * time.Second
)

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "courierconnect",
}

var defaultPricing = Pricing{
	BasePrice:    3.00,
	PricePerKm:   0.80,
	MinimumPrice: 5.00,
	CourierShare: 0.70,
}

var defaultStripe = Stripe{
	SuccessURL: "http://localhost:3000/payments/success",
	CancelURL:  "http://localhost:3000/payments/cancel",
	Currency:   "usd",
}

var defaultKafka = Kafka{
	Topic: "delivery-notifications",
}

var defaultPaymentGateway = PaymentGateway{
	MaxAttempts: 4,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

var defaultRouting = Routing{
	Timeout: 5 * time.Second,
}

var defaultEscrow = Escrow{
	SweepInterval: time.Minute,
	SweepBatch:    50,
}

// DefaultDB returns the default Postgres settings.
func DefaultDB() DB { return defaultDB }

// DefaultPricing returns the default pricing constants.
func DefaultPricing() Pricing { return defaultPricing }

// DefaultStripe returns the default Stripe settings.
func DefaultStripe() Stripe { return defaultStripe }

// DefaultKafka returns the default Kafka settings.
func DefaultKafka() Kafka { return defaultKafka }

// DefaultPaymentGateway returns the default gateway retry settings.
func DefaultPaymentGateway() PaymentGateway { return defaultPaymentGateway }

// DefaultRouting returns the default route provider settings.
func DefaultRouting() Routing { return defaultRouting }

// DefaultEscrow returns the default sweep settings.
func DefaultEscrow() Escrow { return defaultEscrow }
