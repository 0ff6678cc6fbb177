// handlers/stream.go
package handlers

import (
	"world-sync-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupStreamRoutes(app *fiber.App, broadcaster *services.SyncBroadcaster) {
	// Spectator stream — one-way push, no auth (human-facing overlay feed)
	app.Get("/events/stream", broadcaster.StreamEvents)
}
