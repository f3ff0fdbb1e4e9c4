package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courierconnect/internal/http/handlers"
	"courierconnect/internal/http/middleware"
	"courierconnect/internal/logx"
)

// Deps bundles the handlers the router mounts.
type Deps struct {
	Base     *handlers.Handlers
	Delivery *handlers.DeliveryHandler
	Payment  *handlers.PaymentHandler
	Pricing  *handlers.PricingHandler
	Courier  *handlers.CourierHandler
	Logger   logx.Logger
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(15 * time.Second))
	r.Use(middleware.Observability(d.Logger))
	r.Use(middleware.Identity)

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Handle("/metrics", promhttp.Handler())

	// Public tracking alias for shared links.
	r.Get("/track/{trackingID}", d.Delivery.Track)

	r.Route("/deliveries", func(r chi.Router) {
		r.Post("/", d.Delivery.Create)
		r.Get("/", d.Delivery.List)
		r.Get("/available", d.Delivery.Available)
		r.Get("/{trackingID}", d.Delivery.Track)
		r.Post("/{trackingID}/accept", d.Delivery.Accept)
		r.Patch("/{trackingID}/status", d.Delivery.Advance)
		r.Post("/{trackingID}/cancel", d.Delivery.Cancel)
		r.Post("/{trackingID}/checkout", d.Payment.CreateCheckout)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/webhook", d.Payment.Webhook)
		r.Post("/release", d.Payment.Release)
	})

	r.Route("/prices", func(r chi.Router) {
		r.Post("/quote", d.Pricing.Quote)
		r.Get("/config", d.Pricing.Config)
	})

	r.Route("/couriers", func(r chi.Router) {
		r.Post("/", d.Courier.Register)
		r.Get("/{id}", d.Courier.Get)
		r.Put("/{id}/payout", d.Courier.SetPayout)
		r.Get("/{id}/earnings", d.Courier.Earnings)
	})

	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	return r
}
