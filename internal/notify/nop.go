package notify

import "context"

type nopDispatcher struct{}

// Nop returns a Dispatcher that drops every event. Used when no broker is
// configured and in tests.
func Nop() Dispatcher {
	return nopDispatcher{}
}

func (nopDispatcher) Dispatch(context.Context, Event) error { return nil }
