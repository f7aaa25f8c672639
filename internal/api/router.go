package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Sessions    Sessions
	Payments    Payments
	Auth        *Authenticator
	Eligibility Eligibility
	Log         *zap.Logger
}

// NewRouter constructs the chi router with all API endpoints registered.
func NewRouter(d Deps) http.Handler {
	h := NewHandler(d.Sessions, d.Payments, d.Log)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.Route("/me", func(r chi.Router) {
			r.Use(Guard(d.Eligibility, d.Log))

			r.Get("/", h.GetProfileHandler)
			r.Get("/session", h.GetSessionHandler)
			r.Post("/actions", h.ActionHandler)
			r.Post("/deposits", h.CreateDepositHandler)
			r.Post("/invoices/{invoiceId}/check", h.CheckInvoiceHandler)
			r.Post("/withdrawals", h.WithdrawHandler)
		})

		r.With(RequireRole(RoleTransport)).Post("/payments/external", h.ExternalPaymentHandler)
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
