package trade

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tradebook/trade-service/internal/metrics"
)

// NewRouter mounts the trade endpoints under tradesPath together with the
// health, metrics and WebSocket routes. hub may be nil.
func NewRouter(svc *Service, hub *WSHub, tradesPath string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Get("/__health", svc.Health)

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route(tradesPath, func(r chi.Router) {
		r.Get("/", svc.ListTrades)
		r.Post("/", svc.CreateTrade)

		// WebSocket endpoint for upsert notifications.
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}
	})

	return r
}

// cors allows the trade grid to be served from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
