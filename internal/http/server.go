package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(handler.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/create", handler.CreatePayment)
		r.Get("/callback/success", handler.PaymentSuccess)
		r.Get("/callback/failure", handler.PaymentFailure)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(handler.requireAdmin)
		r.Get("/orders", handler.ListOrders)
		r.Get("/orders/stream", handler.StreamOrders)
		r.Get("/orders/{orderID}", handler.GetOrder)
		r.Post("/disburse", handler.Disburse)
	})

	return &Server{Router: r}
}
