package payment

import (
	"context"
	"fmt"

	"courierconnect/internal/apperr"
)

// DisabledGateway stands in when no processor credentials are configured.
// Every call reports the gateway unavailable; deliveries still work, money
// movement waits until the service is configured.
type DisabledGateway struct{}

// Disabled returns a DisabledGateway.
func Disabled() *DisabledGateway { return &DisabledGateway{} }

func errDisabled() error {
	return fmt.Errorf("%w: payment gateway not configured", apperr.ErrUnavailable)
}

func (*DisabledGateway) CreateCheckout(context.Context, CheckoutRequest) (*CheckoutResult, error) {
	return nil, errDisabled()
}

func (*DisabledGateway) Capture(context.Context, string) (string, error) {
	return "", errDisabled()
}

func (*DisabledGateway) Transfer(context.Context, TransferRequest) (string, error) {
	return "", errDisabled()
}

func (*DisabledGateway) Release(context.Context, ReleaseRequest) error {
	return errDisabled()
}
