package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"eduquiz/internal/generator"
	"eduquiz/internal/models"
	"eduquiz/internal/quiz"
	"eduquiz/internal/session"
	"eduquiz/internal/settings"
	"eduquiz/pkg/cache"
	"eduquiz/pkg/database"
	"eduquiz/pkg/websocket"

	"github.com/gorilla/mux"
)

const (
	appName    = "eduquiz"
	appVersion = "1.0.0"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	rand.Seed(time.Now().UnixNano())

	// Initialize database
	dbConfig := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}

	db, err := database.NewPostgresDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	err = db.AutoMigrate(
		&models.QuizRecord{},
		&models.QuizQuestionRecord{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis-backed configuration store
	redisCache := cache.NewRedisCache(os.Getenv("REDIS_ADDR"))
	if err := redisCache.Ping(); err != nil {
		log.Printf("Warning: redis unreachable, settings fall back to defaults: %v", err)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Initialize services
	tokenSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(tokenSecret) == 0 {
		log.Fatal("JWT_SECRET must be set")
	}

	manager := session.NewManager(wsHub)
	defer manager.Close()

	source := generator.NewClient(30 * time.Second)
	settingsService := settings.NewService(redisCache)
	quizRepo := quiz.NewRepository(db)
	quizService := quiz.NewService(manager, source, settingsService, quizRepo, wsHub)

	// Initialize handlers
	quizHandler := quiz.NewHandler(quizService, tokenSecret, 12*time.Hour)
	settingsHandler := settings.NewHandler(settingsService)

	// Setup router
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	router.HandleFunc("/config", settingsHandler.GetConfig(appName, appVersion)).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/quiz/start", quizHandler.StartQuiz).Methods("POST", "OPTIONS")
	api.HandleFunc("/quiz/start-manual", quizHandler.StartManualQuiz).Methods("POST", "OPTIONS")
	api.HandleFunc("/quiz/generate-prompt", quizHandler.GeneratePrompt).Methods("POST", "OPTIONS")
	api.HandleFunc("/quiz/ask-ai", quizHandler.AskAI).Methods("POST", "OPTIONS")
	api.HandleFunc("/history", quizHandler.GetHistory).Methods("GET", "OPTIONS")
	api.HandleFunc("/history/{id:[0-9]+}", quizHandler.GetHistoryEntry).Methods("GET", "OPTIONS")
	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET", "OPTIONS")
	api.HandleFunc("/settings", settingsHandler.SaveSettings).Methods("PUT", "OPTIONS")
	api.HandleFunc("/log-error", quizHandler.LogClientError).Methods("POST", "OPTIONS")

	// Session routes - token required
	protected := api.PathPrefix("/session").Subrouter()
	protected.Use(session.TokenMiddleware(tokenSecret))
	protected.HandleFunc("", quizHandler.GetSession).Methods("GET", "OPTIONS")
	protected.HandleFunc("/answer", quizHandler.SubmitAnswer).Methods("POST", "OPTIONS")
	protected.HandleFunc("/advance", quizHandler.Advance).Methods("POST", "OPTIONS")
	protected.HandleFunc("/end", quizHandler.EndQuiz).Methods("POST", "OPTIONS")
	protected.HandleFunc("/save", quizHandler.SaveQuiz).Methods("POST", "OPTIONS")
	protected.HandleFunc("/retry", quizHandler.RetryIncorrect).Methods("POST", "OPTIONS")
	protected.HandleFunc("/reset", quizHandler.ResetSession).Methods("POST", "OPTIONS")
	protected.HandleFunc("/export", quizHandler.ExportCSV).Methods("GET", "OPTIONS")

	// WebSocket endpoint
	router.HandleFunc("/ws/{session}", wsHub.HandleWebSocket)

	// CORS middleware configuration
	allowedOrigins := []string{"http://localhost:3000"}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown setup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown gracefully")
}
