package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/dbi-software/hive/database"
	"github.com/dbi-software/hive/handlers"
	"github.com/dbi-software/hive/services"
)

func main() {
	// Load environment variables from .env file, if present
	if err := services.LoadEnv(".env"); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to load .env file", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg := services.ConfigFromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize database
	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	store := database.NewStore(db)

	// Initialize services
	clock := services.SystemClock()
	authService := services.NewAuthService(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTP, cfg.EmailTimeout, logger)
	visibility := services.NewVisibilityResolver(store)

	// WebSocket hub for live notification pushes
	hub := services.NewHub(logger)
	go hub.Run()

	notificationService := services.NewNotificationService(store, hub, clock, logger)
	taskService := services.NewTaskService(store, notificationService, emailService, clock, logger)
	dashboardService := services.NewDashboardService(store, visibility, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Deadline notification scheduler
	scheduler := services.NewReminderScheduler(store, notificationService, emailService, clock, logger, cfg)
	go scheduler.Run(ctx)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, store, logger)
	projectsHandler := handlers.NewProjectsHandler(store, visibility, logger)
	tasksHandler := handlers.NewTasksHandler(store, taskService, visibility, logger)
	notificationsHandler := handlers.NewNotificationsHandler(notificationService, logger)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, authService, logger)
	authMiddleware := handlers.NewAuthMiddleware(authService)

	// Setup router
	r := mux.NewRouter()

	// Auth routes (public)
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/refresh", authHandler.Refresh).Methods("POST")

	// WebSocket route for real-time notifications, token auth via query string
	r.HandleFunc("/api/ws", wsHandler.Serve)

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Auth)

	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/users", authHandler.ListUsers).Methods("GET")

	api.HandleFunc("/dashboard", dashboardHandler.Get).Methods("GET")

	api.HandleFunc("/projects", projectsHandler.List).Methods("GET")
	api.HandleFunc("/projects", projectsHandler.Create).Methods("POST")
	api.HandleFunc("/projects/{id}", projectsHandler.Get).Methods("GET")
	api.HandleFunc("/projects/{id}", projectsHandler.Update).Methods("PUT")
	api.HandleFunc("/projects/{id}", projectsHandler.Delete).Methods("DELETE")
	api.HandleFunc("/projects/{id}/members", projectsHandler.AddMember).Methods("POST")
	api.HandleFunc("/projects/{id}/members/{userId}", projectsHandler.RemoveMember).Methods("DELETE")
	api.HandleFunc("/projects/{id}/sprints", projectsHandler.ListSprints).Methods("GET")
	api.HandleFunc("/projects/{id}/sprints", projectsHandler.CreateSprint).Methods("POST")

	api.HandleFunc("/tasks", tasksHandler.List).Methods("GET")
	api.HandleFunc("/tasks", tasksHandler.Create).Methods("POST")
	api.HandleFunc("/tasks/{id}", tasksHandler.Get).Methods("GET")
	api.HandleFunc("/tasks/{id}", tasksHandler.Update).Methods("PUT")
	api.HandleFunc("/tasks/{id}", tasksHandler.Delete).Methods("DELETE")
	api.HandleFunc("/tasks/{id}/comments", tasksHandler.ListComments).Methods("GET")
	api.HandleFunc("/tasks/{id}/comments", tasksHandler.CreateComment).Methods("POST")
	api.HandleFunc("/comments/{id}", tasksHandler.DeleteComment).Methods("DELETE")

	api.HandleFunc("/notifications", notificationsHandler.List).Methods("GET")
	api.HandleFunc("/notifications/unread-count", notificationsHandler.UnreadCount).Methods("GET")
	api.HandleFunc("/notifications/{id}/read", notificationsHandler.MarkRead).Methods("PUT")
	api.HandleFunc("/notifications/read-all", notificationsHandler.MarkAllRead).Methods("PUT")
	api.HandleFunc("/notifications/{id}", notificationsHandler.Delete).Methods("DELETE")

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // In production, change to your domain
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
}
