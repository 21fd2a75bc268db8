package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/casefilehq/casefile-backend/internal/config"
	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/handlers"
	"github.com/casefilehq/casefile-backend/internal/middleware"
	"github.com/casefilehq/casefile-backend/internal/routes"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Load env
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	// The signing secret is load-bearing: without it every signin fails.
	if cfg.JWTSecret == "" {
		log.Println("⚠️  WARNING: JWT_SECRET not set. Operator signin will be rejected.")
		log.Println("   To generate a secret, run: openssl rand -base64 32")
		log.Println("   Set it in your environment: JWT_SECRET=<generated-secret>")
	} else {
		log.Println("✅ JWT secret configured")
	}

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (share access audit trail)
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	if err := services.EnsureAuditIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB audit indexes: %v", err)
	} else {
		log.Println("✅ MongoDB audit indexes ensured")
	}

	// Initialize Cloudinary service
	if err := services.InitCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret); err != nil {
		log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
		log.Println("File uploads will not be available")
	} else if services.Cloudinary == nil {
		log.Println("Warning: Cloudinary credentials not found. File uploads will not be available")
	} else {
		log.Println("✅ Cloudinary service initialized")
	}

	// Fan share access events from Redis out to operator dashboards
	services.StartActivitySubscriber(context.Background())
	log.Println("✅ Share activity subscriber started")

	handlers.InitAuth(cfg)

	// Setup router
	r := chi.NewRouter()

	// Custom CORS: set headers and respond to OPTIONS with 200 so preflight never gets 403
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, per-IP + login rate limiting)")
	} else {
		r.Use(middleware.RateLimitMiddleware)
	}

	// Health check (no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Setup routes
	routes.SetupRoutes(r)

	log.Printf("🚀 Casefile backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
