package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured.
// prices and metrics are optional.
func NewServer(port string, handler *Handler, prices *PriceHandler, metrics http.Handler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", handler.Health)
	mux.HandleFunc("GET /api/v1/stats", handler.GetStats)
	mux.HandleFunc("GET /api/v1/runs", handler.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", handler.GetRun)

	triggerHandler := http.HandlerFunc(handler.TriggerCycle)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/cycles/{pipeline}", requireAuth(adminAPIKey, triggerHandler))
	} else {
		mux.Handle("POST /api/v1/cycles/{pipeline}", triggerHandler)
	}

	if prices != nil {
		mux.HandleFunc("GET /api/v1/prices/{token}", prices.GetPrice)
		mux.HandleFunc("GET /api/v1/quotes", prices.ListQuotes)
	}
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
