package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"world-sync-system/handlers"
	"world-sync-system/models"
	"world-sync-system/services"
	"world-sync-system/utils"
	"world-sync-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024, // 64MB — artifact blobs arrive base64-encoded
	})

	// CORS for the spectator frontend and dev consoles
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := utils.EnsureDataDirs(dataDir); err != nil {
		log.Fatal("failed to ensure data dirs:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	catalog, err := services.OpenCatalog(filepath.Join(dataDir, "catalog.json"))
	if err != nil {
		log.Fatal("failed to open catalog:", err)
	}
	ledger, err := services.OpenLedger(filepath.Join(dataDir, "ledger.jsonl"), catalog)
	if err != nil {
		log.Fatal("failed to open ledger:", err)
	}

	artifacts := services.NewArtifactStore(filepath.Join(dataDir, "artifacts"), catalog)
	submissions := services.NewSubmissionRegistry(filepath.Join(dataDir, "submissions"), catalog)

	world := services.NewWorldStore()
	gateway := services.NewBotGateway(world, filepath.Join(dataDir, "bots"))
	world.SetBroadcast(gateway.Broadcast)

	checkpointPath := filepath.Join(dataDir, "checkpoint.json")
	broadcaster := services.NewSyncBroadcaster(checkpointPath, submissions, artifacts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- OPTIONAL: catalog mirror into Postgres when DATABASE_URL is set ---
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database:", err)
		}
		if err := db.AutoMigrate(&models.CatalogMirror{}); err != nil {
			log.Fatal("failed to migrate database:", err)
		}
		mirrorClient := workers.NewCatalogMirrorClient(db)
		go workers.PollCatalog(ctx, mirrorClient, catalog, ledger, 10*time.Second)
		log.Println("✅ Catalog mirror polling running (every 10s)")
	} else {
		log.Println("⚠️  DATABASE_URL not set — catalog mirror disabled")
	}

	services.StartCheckpointScheduler(ledger, world, checkpointPath, 2*time.Second)
	services.StartReconcileScheduler(catalog, artifacts, submissions, ledger)

	handlers.SetupWorldRoutes(app, gateway, world)
	handlers.SetupEconomyRoutes(app, artifacts, submissions, ledger, catalog)
	handlers.SetupStreamRoutes(app, broadcaster)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Checkpoint snapshots running (every 2s)")
	log.Println("✅ Catalog reconciliation running (every 5m)")
	if utils.MirrorEnabled() {
		log.Println("✅ Artifact blob mirroring to R2 enabled")
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set — artifact blob mirroring disabled")
	}
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
