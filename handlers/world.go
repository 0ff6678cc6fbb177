// handlers/world.go
package handlers

import (
	"world-sync-system/middleware"
	"world-sync-system/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func SetupWorldRoutes(app *fiber.App, gateway *services.BotGateway, world *services.WorldStore) {
	// 🔓 Public routes — bot registration and world reads
	app.Post("/bot/auth", gateway.RegisterBot)
	app.Get("/world/state", func(c *fiber.Ctx) error {
		return c.JSON(world.Snapshot())
	})

	// 🔐 Admin toggles — require the service token
	serviceAuth := middleware.ServiceAuthMiddleware()
	app.Post("/build-night", serviceAuth, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"isBuildNight": world.ToggleBuildNight()})
	})
	app.Post("/spawn-avatar", serviceAuth, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(world.SpawnAvatar())
	})

	// Bot control channel — one connection binds to one bot after BOT_AUTH
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(gateway.HandleWS))
}
