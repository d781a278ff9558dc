package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/aqtanberli/roadmap-tracker/internal/config"
	"github.com/aqtanberli/roadmap-tracker/internal/database"
	"github.com/aqtanberli/roadmap-tracker/internal/handlers"
	"github.com/aqtanberli/roadmap-tracker/internal/hub"
	"github.com/aqtanberli/roadmap-tracker/internal/models"
	"github.com/aqtanberli/roadmap-tracker/internal/repository"
	cronjobs "github.com/aqtanberli/roadmap-tracker/internal/scheduler"
	"github.com/aqtanberli/roadmap-tracker/internal/services"
	"github.com/aqtanberli/roadmap-tracker/pkg/email"
	"github.com/aqtanberli/roadmap-tracker/pkg/logger"
	"github.com/aqtanberli/roadmap-tracker/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// --- Fan-out hub ---
	notificationHub := hub.NewHub()

	// --- Services ---
	mailer := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSender, cfg.SMTPPassword)
	userService := services.NewUserService(userRepo, mailer)
	notificationService := services.NewNotificationService(notificationRepo, notificationHub)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	streamHandler := handlers.NewStreamHandler(notificationHub, cfg.JWTSecret)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// Register User routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")
	router.HandleFunc("/users/verify", userHandler.VerifyEmailHandler).Methods("GET")

	// Protected user routes (only authenticated users can access)
	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUserRoutes.HandleFunc("/{id}", userHandler.GetUserHandler).Methods("GET")

	// Notification routes
	protectedNotificationRoutes := router.PathPrefix("/notifications").Subrouter()
	protectedNotificationRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedNotificationRoutes.HandleFunc("", notificationHandler.GetFeedHandler).Methods("GET")
	protectedNotificationRoutes.HandleFunc("/read-all", notificationHandler.MarkAllAsReadHandler).Methods("PUT")
	protectedNotificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("PUT")
	protectedNotificationRoutes.HandleFunc("/{id}", notificationHandler.DeleteNotificationHandler).Methods("DELETE")

	// Producer endpoint, restricted to roles that emit events
	producerRoutes := router.PathPrefix("/notifications").Subrouter()
	producerRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	producerRoutes.Use(middleware.RequireRole(models.RoleAdmin, models.RoleManager, models.RoleInstructor))
	producerRoutes.HandleFunc("", notificationHandler.CreateNotificationHandler).Methods("POST")

	// WebSocket stream (token comes via query param, not header)
	router.HandleFunc("/ws/notifications", streamHandler.NotificationStreamHandler)

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Periodic cleanup
	cronjobs.StartNotificationCronJobs(notificationService)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
