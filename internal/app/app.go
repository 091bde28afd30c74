package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"students-api/internal/config"
	"students-api/internal/db"
	"students-api/internal/health"
	"students-api/internal/logger"
	"students-api/internal/messaging"
	"students-api/internal/metrics"
	"students-api/internal/middleware"
	"students-api/internal/student"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

type App struct {
	config *config.Config
	router chi.Router
	server *http.Server
	logger *slog.Logger
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if err := db.RunMigrations(ctx, database, (*student.Student)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}
	if err := student.CreateIndexes(ctx, database); err != nil {
		log.Fatal("failed to create indexes:", err)
	}

	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	appMetrics, err := metrics.New(otel.Meter(ServiceName))
	if err != nil {
		slogLogger.Warn("failed to initialize metrics", "error", err)
		appMetrics = metrics.NewMock()
	}

	// NATS is optional: lifecycle events are best-effort
	var events student.EventPublisher
	natsProducer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize NATS producer", "error", err)
	} else {
		events = natsProducer
	}

	studentRepo := student.NewRepository(database)
	studentService := student.NewService(studentRepo, events)
	studentHandler := student.NewHandler(studentService, slogLogger, appMetrics)
	studentHandler.RegisterRoutes(app.router)

	app.router.Get("/", app.banner)
	app.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		student.RespondWithError(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path))
	})

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) banner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Welcome to the student records API",
		"version": Version,
		"endpoints": map[string]string{
			"listStudents":   "GET /students",
			"createStudent":  "POST /students",
			"getStudent":     "GET /students/{id}",
			"updateStudent":  "PUT /students/{id}",
			"deleteStudent":  "DELETE /students/{id} (deactivation)",
			"byProgram":      "GET /students/program/{program}",
			"search":         "GET /students/search?q=",
			"advancedSearch": "GET /students/advanced-search",
			"inactive":       "GET /students/inactive",
		},
	})
}

// Router exposes the configured routes for tests.
func (a *App) Router() chi.Router {
	return a.router
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")
	return a.server.Shutdown(ctx)
}
