package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/cachestore"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/config"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/database"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/gateway"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/handlers"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/security"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/services"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("GTO sales dashboard backend starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	cacheStore := cachestore.New(database.DB, config.Cfg.CacheNamespace, config.Cfg.CacheMaxEntries)

	apiClient := gateway.NewClient(config.Cfg.APIBaseURL, config.Cfg.APIKey, config.Cfg.RequestTimeout)
	gtoGateway := gateway.New(apiClient, cacheStore, config.Cfg.ReferenceCacheTTL)

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.DashboardPasswordHash, config.Cfg.AccessTokenExpiry)
	reportService := services.NewReportService(
		gtoGateway,
		config.Cfg.TargetCurrency,
		config.Cfg.AnchorCurrency,
		config.Cfg.SupportedCurrencies,
	)

	accessHandler := handlers.NewAccessHandler(authService)
	reportHandler := handlers.NewReportHandler(reportService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "GTO Sales Dashboard backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", accessHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(accessHandler.AccessMiddleware)

			r.Get("/report", reportHandler.HandleRunReport)
			r.Get("/report/regroup", reportHandler.HandleRegroup)
			r.Get("/orders/{orderID}", reportHandler.HandleGetOrderInfo)
		})
	})

	r.NotFound(handlers.NotFoundHandler)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
