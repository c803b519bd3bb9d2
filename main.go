package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/balancy/pizza-bot/database"
	"github.com/balancy/pizza-bot/internal/handlers"
	"github.com/balancy/pizza-bot/internal/jobs"
	"github.com/balancy/pizza-bot/internal/models"
	"github.com/balancy/pizza-bot/internal/routes"
	"github.com/balancy/pizza-bot/internal/services"
	"github.com/balancy/pizza-bot/internal/storage"
)

const (
	defaultMoltinRoot  = "https://api.moltin.com"
	defaultGeocoderURL = "https://geocode-maps.yandex.ru/1.x"
	defaultFacebookURL = "https://graph.facebook.com/v2.6/me/messages"

	followUpDelay   = time.Hour
	redisSessionTTL = 24 * time.Hour
)

func main() {
	// Load .env file for local development
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found - checking environment variables")
	}

	clientID := os.Getenv("CLIENT_ID")
	clientSecret := os.Getenv("CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		log.Fatal("CLIENT_ID and CLIENT_SECRET are required")
	}

	// Initialize session storage
	var store storage.Store
	switch os.Getenv("SESSION_STORE") {
	case "redis":
		redisStore := storage.NewRedisStore(
			os.Getenv("REDIS_ADDR"),
			os.Getenv("REDIS_PASSWORD"),
			redisSessionTTL,
		)
		if err := redisStore.Ping(); err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		store = redisStore
		log.Println("✅ Using Redis session storage")
	case "postgres":
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()
		if err := database.DB.AutoMigrate(&models.SessionRecord{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL session storage")
	default:
		log.Println("⚠️  Using in-memory session storage (sessions lost on restart)")
		store = storage.NewMemoryStore()
	}
	storage.SetStore(store)

	// Shared backend collaborators
	moltinRoot := getEnvDefault("MOLTIN_API_ROOT", defaultMoltinRoot)
	api := services.NewMoltinClient(moltinRoot, clientID, clientSecret)
	geocoder := services.NewGeocoder(
		getEnvDefault("GEOCODER_URL", defaultGeocoderURL),
		os.Getenv("YANDEX_API_KEY"),
	)
	delivery := services.NewDeliveryService(api)
	followUps := jobs.NewFollowUpScheduler(followUpDelay)

	// Telegram side
	var telegram *services.TelegramService
	if botToken := os.Getenv("TG_BOT_TOKEN"); botToken != "" {
		var err error
		telegram, err = services.NewTelegramService(botToken, os.Getenv("PAYMENT_PROVIDER_TOKEN"))
		if err != nil {
			log.Fatal("Failed to initialize Telegram service:", err)
		}

		conversation := services.NewConversation("tg", store, api, geocoder, delivery, followUps, telegram)
		telegram.SetConversation(conversation)

		go telegram.Run()
		log.Printf("✅ Telegram bot polling as @%s", telegram.Username())
	} else {
		log.Println("⚠️  TG_BOT_TOKEN not set - Telegram bot disabled")
	}

	// Facebook side
	facebook := services.NewFacebookService(
		getEnvDefault("FB_SEND_URL", defaultFacebookURL),
		os.Getenv("PAGE_ACCESS_TOKEN"),
	)
	fbConversation := services.NewConversation("fb", store, api, geocoder, delivery, followUps, facebook)
	facebookHandler := handlers.NewFacebookHandler(fbConversation)

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Pizza Bot v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New())

	routes.SetupRoutes(app, facebookHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Gracefully shutting down...")
		if telegram != nil {
			telegram.Stop()
		}
		followUps.Stop()
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🍕 Pizza Bot starting on port %s", port)
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
