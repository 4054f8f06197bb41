package wire

import (
	"net/http"

	"storefront/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

// wireOrder mounts the order routes. Every route needs a bearer token.
func wireOrder(
	r chi.Router,
	orderHandler *adaptor.OrderHandler,
	auth func(http.Handler) http.Handler,
) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(auth)

		r.Post("/", orderHandler.PlaceOrder)
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{id}", orderHandler.GetOrder)
	})
}
