package http

import (
	"net/http"

	"device-tracker/internal/handlers"
	"device-tracker/internal/middleware"
	"device-tracker/internal/monitoring"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	authHandler *handlers.AuthHandler,
	whitelistHandler *handlers.WhitelistHandler,
	batchHandler *handlers.BatchHandler,
	cartonHandler *handlers.CartonHandler,
	mappingHandler *handlers.MappingHandler,
	lifecycleHandler *handlers.LifecycleHandler,
	packlistHandler *handlers.PacklistHandler,
	healthHandler *handlers.HealthHandler,
	stats *monitoring.StatsCollector,
	stageFeed http.Handler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)

	// Public API routes - Authentication
	r.HandleFunc("/users/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/users/login", authHandler.Login).Methods("POST")

	usersAPI := r.PathPrefix("/users").Subrouter()
	usersAPI.Use(authMiddleware.Authenticate)
	usersAPI.HandleFunc("/me", authHandler.Me).Methods("GET")

	// Whitelist - registered identifiers
	whitelistAPI := r.PathPrefix("/whitelist").Subrouter()
	whitelistAPI.Use(authMiddleware.Authenticate)
	whitelistAPI.HandleFunc("/create", whitelistHandler.Create).Methods("POST")
	whitelistAPI.HandleFunc("/all", whitelistHandler.List).Methods("GET")
	whitelistAPI.HandleFunc("/{ref:[0-9]+}", whitelistHandler.Get).Methods("GET")
	whitelistAPI.Handle("/{ref:[0-9]+}", authMiddleware.RequireAdmin(http.HandlerFunc(whitelistHandler.Delete))).Methods("DELETE")

	// Batches and their cartons
	batchAPI := r.PathPrefix("/batch").Subrouter()
	batchAPI.Use(authMiddleware.Authenticate)
	batchAPI.HandleFunc("/create", batchHandler.Create).Methods("POST")
	batchAPI.HandleFunc("/all", batchHandler.List).Methods("GET")
	batchAPI.HandleFunc("/{batchId}", batchHandler.Get).Methods("GET")
	batchAPI.HandleFunc("/{batchId}", batchHandler.Update).Methods("PATCH")
	batchAPI.Handle("/{batchId}", authMiddleware.RequireAdmin(http.HandlerFunc(batchHandler.Delete))).Methods("DELETE")

	cartonAPI := r.PathPrefix("/cartonid").Subrouter()
	cartonAPI.Use(authMiddleware.Authenticate)
	cartonAPI.HandleFunc("/create", cartonHandler.Create).Methods("POST")
	cartonAPI.HandleFunc("/filter", cartonHandler.Filter).Methods("GET")
	cartonAPI.HandleFunc("/all", cartonHandler.List).Methods("GET")

	// Alias mappings
	mappingAPI := r.PathPrefix("/mapping").Subrouter()
	mappingAPI.Use(authMiddleware.Authenticate)
	mappingAPI.HandleFunc("/create", mappingHandler.Create).Methods("POST")
	mappingAPI.HandleFunc("/available", mappingHandler.Available).Methods("GET")
	mappingAPI.HandleFunc("/fetchmap", mappingHandler.FetchMap).Methods("POST")
	mappingAPI.HandleFunc("/all", mappingHandler.List).Methods("GET")
	mappingAPI.HandleFunc("/{ref:[0-9]+}", mappingHandler.Update).Methods("PATCH")
	mappingAPI.Handle("/{ref:[0-9]+}", authMiddleware.RequireAdmin(http.HandlerFunc(mappingHandler.Delete))).Methods("DELETE")

	// Manufacturing stages
	lifecycleAPI := r.PathPrefix("/lifecycle").Subrouter()
	lifecycleAPI.Use(authMiddleware.Authenticate)
	lifecycleAPI.HandleFunc("", lifecycleHandler.Update).Methods("PATCH")
	lifecycleAPI.HandleFunc("/create", lifecycleHandler.Create).Methods("POST")
	lifecycleAPI.HandleFunc("/fetch", lifecycleHandler.Fetch).Methods("POST")
	lifecycleAPI.HandleFunc("/history", lifecycleHandler.History).Methods("GET")

	// Packing and manifests
	packlistAPI := r.PathPrefix("/packlist").Subrouter()
	packlistAPI.Use(authMiddleware.Authenticate)
	packlistAPI.HandleFunc("/create", packlistHandler.Create).Methods("POST")
	packlistAPI.HandleFunc("/fetchpacklist", packlistHandler.Fetch).Methods("POST")
	packlistAPI.HandleFunc("/export", packlistHandler.Export).Methods("GET")
	packlistAPI.HandleFunc("/deleteByCarton/{cartonId}", packlistHandler.DeleteByCarton).Methods("DELETE")
	packlistAPI.HandleFunc("/{ref:[0-9]+}", packlistHandler.Update).Methods("PATCH")

	// Health and operations
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	monitoringAPI := r.PathPrefix("/monitoring").Subrouter()
	monitoringAPI.Use(authMiddleware.RequireAdmin)
	monitoringAPI.HandleFunc("/stats", stats.GetStats).Methods("GET")

	if stageFeed != nil {
		r.Handle("/ws/lifecycle", stageFeed)
	}

	return r
}
