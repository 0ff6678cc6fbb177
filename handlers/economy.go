// handlers/economy.go
package handlers

import (
	"world-sync-system/middleware"
	"world-sync-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEconomyRoutes(app *fiber.App, artifacts *services.ArtifactStore, submissions *services.SubmissionRegistry, ledger *services.Ledger, catalog *services.Catalog) {
	// 🔓 Public routes — reads and integrity checks
	app.Get("/artifacts/:id", artifacts.GetArtifact)
	app.Get("/artifacts/:id/verify", artifacts.VerifyArtifact)
	app.Get("/submissions/:id", submissions.GetSubmission)
	app.Get("/ledger", ledger.QueryEvents)
	app.Get("/ledger/verify", ledger.VerifyLedger)
	app.Get("/catalog", catalog.GetCatalog)

	// 🔐 Mutating routes — only the economy engine writes records
	serviceAuth := middleware.ServiceAuthMiddleware()
	app.Post("/artifacts", serviceAuth, artifacts.StoreArtifact)
	app.Post("/submissions", serviceAuth, submissions.CreateSubmission)
	app.Patch("/submissions/:id/status", serviceAuth, submissions.UpdateSubmissionStatus)
	app.Post("/ledger/events", serviceAuth, ledger.AppendEvent)
}
