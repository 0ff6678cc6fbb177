package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"world-sync-system/models"
	"world-sync-system/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WebSocket message types. Client→server: BOT_AUTH, BOT_ACTION, PING.
// Server→client: the rest.
const (
	MsgBotAuth      = "BOT_AUTH"
	MsgBotAction    = "BOT_ACTION"
	MsgPing         = "PING"
	MsgAuthSuccess  = "AUTH_SUCCESS"
	MsgAuthFailed   = "AUTH_FAILED"
	MsgWorldState   = "WORLD_STATE"
	MsgActionResult = "ACTION_RESULT"
	MsgAvatarUpdate = "AVATAR_UPDATE"
	MsgBuildNight   = "BUILD_NIGHT"
	MsgPong         = "PONG"
	MsgError        = "ERROR"
)

var ErrTokenTooShort = errors.New("token must be at least 8 characters")
var ErrBotRegistered = errors.New("bot already registered")

// AssignedAvatar is the avatar summary returned by registration.
type AssignedAvatar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// RegisterResult is the phase-1 registration response.
type RegisterResult struct {
	BotID          string         `json:"botId"`
	AssignedAvatar AssignedAvatar `json:"assignedAvatar"`
	WSEndpoint     string         `json:"wsEndpoint"`
	Permissions    []string       `json:"permissions"`
}

type wsMessage struct {
	Type       string        `json:"type"`
	BotID      string        `json:"botId,omitempty"`
	Token      string        `json:"token,omitempty"`
	ActionType string        `json:"actionType,omitempty"`
	Payload    ActionPayload `json:"payload,omitempty"`
	ActionID   string        `json:"actionId,omitempty"`
}

// wsClient serializes writes on one connection: action responses come from
// the read loop while broadcasts arrive from timers and other bots.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// BotGateway binds authenticated bots to avatars over a two-phase protocol:
// phase 1 registers a token over REST and reserves an avatar; phase 2 binds
// a WebSocket connection to the registered bot via BOT_AUTH. One connection
// controls exactly one bot/avatar pair.
type BotGateway struct {
	mu      sync.Mutex
	world   *WorldStore
	botsDir string
	conns   map[string]*wsClient // bound botID → live connection
}

func NewBotGateway(world *WorldStore, botsDir string) *BotGateway {
	return &BotGateway{
		world:   world,
		botsDir: botsDir,
		conns:   make(map[string]*wsClient),
	}
}

// HashBotToken derives the stable bot id: first 16 hex digits of
// sha256(token).
func HashBotToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:16]
}

// Register runs phase 1: validates the token, rejects duplicates, reserves
// an avatar (pool first, synthesized if exhausted) and records the bot with
// no live connection yet.
func (g *BotGateway) Register(token string) (RegisterResult, error) {
	if len(token) < 8 {
		return RegisterResult{}, ErrTokenTooShort
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	botID := HashBotToken(token)
	if g.world.GetBot(botID) != nil {
		return RegisterResult{}, ErrBotRegistered
	}

	avatar := g.world.ClaimAvatar(botID)
	bot := models.Bot{
		ID:          botID,
		Token:       token,
		AvatarID:    avatar.ID,
		ConnectedAt: time.Now().UTC(),
	}
	g.world.AddBot(bot)

	if err := utils.WriteJSONAtomic(filepath.Join(g.botsDir, botID+".json"), bot); err != nil {
		log.Printf("⚠️  [GATEWAY] Failed to persist bot record %s: %v", botID, err)
	}

	return RegisterResult{
		BotID:          botID,
		AssignedAvatar: AssignedAvatar{ID: avatar.ID, Name: avatar.Name, X: avatar.X, Y: avatar.Y},
		WSEndpoint:     "/ws",
		Permissions:    []string{"move", "interact", "read", "celebrate"},
	}, nil
}

// RegisterBot serves POST /bot/auth.
func (g *BotGateway) RegisterBot(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auth body"})
	}

	result, err := g.Register(body.Token)
	if errors.Is(err, ErrTokenTooShort) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token missing or too short (min 8 characters)"})
	}
	if errors.Is(err, ErrBotRegistered) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "bot already registered"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "registration failed"})
	}
	return c.JSON(result)
}

// HandleWS runs phase 2 and action dispatch for one connection. Messages on
// a connection are processed in receipt order; an auth mismatch closes the
// socket with no retry, while unknown actions and message types are
// non-fatal.
func (g *BotGateway) HandleWS(conn *websocket.Conn) {
	client := &wsClient{conn: conn}
	boundBotID := ""

	defer func() {
		g.disconnect(boundBotID, client)
		conn.Close()
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case MsgBotAuth:
			bot := g.world.GetBot(msg.BotID)
			if bot == nil || bot.Token != msg.Token {
				client.writeJSON(fiber.Map{"type": MsgAuthFailed, "error": "unknown bot or token mismatch"})
				return
			}
			g.mu.Lock()
			if _, taken := g.conns[msg.BotID]; taken {
				g.mu.Unlock()
				client.writeJSON(fiber.Map{"type": MsgAuthFailed, "error": "bot already connected"})
				return
			}
			g.conns[msg.BotID] = client
			g.mu.Unlock()
			boundBotID = msg.BotID

			client.writeJSON(fiber.Map{"type": MsgAuthSuccess, "botId": bot.ID, "avatarId": bot.AvatarID})
			client.writeJSON(fiber.Map{"type": MsgWorldState, "state": g.world.Snapshot()})

		case MsgBotAction:
			if boundBotID == "" {
				client.writeJSON(fiber.Map{"type": MsgError, "error": "authenticate with BOT_AUTH first"})
				continue
			}
			bot := g.world.GetBot(boundBotID)
			if bot == nil {
				client.writeJSON(fiber.Map{"type": MsgError, "error": "bot record is gone"})
				continue
			}

			result, err := g.world.ApplyAction(bot.AvatarID, msg.ActionType, msg.Payload)
			if err != nil {
				client.writeJSON(fiber.Map{
					"type":     MsgActionResult,
					"actionId": msg.ActionID,
					"success":  false,
					"error":    err.Error(),
				})
				continue
			}
			client.writeJSON(fiber.Map{
				"type":     MsgActionResult,
				"actionId": msg.ActionID,
				"success":  true,
				"result":   result,
			})

		case MsgPing:
			client.writeJSON(fiber.Map{"type": MsgPong})

		default:
			client.writeJSON(fiber.Map{"type": MsgError, "error": "unknown message type"})
		}
	}
}

// disconnect releases the avatar, removes the bot record and fans out the
// release so spectators and other bots see the avatar return to unowned.
func (g *BotGateway) disconnect(botID string, client *wsClient) {
	if botID == "" {
		return
	}

	g.mu.Lock()
	if g.conns[botID] == client {
		delete(g.conns, botID)
	}
	g.mu.Unlock()

	released := g.world.ReleaseAvatar(botID)
	g.world.RemoveBot(botID)
	if err := os.Remove(filepath.Join(g.botsDir, botID+".json")); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  [GATEWAY] Failed to remove bot record %s: %v", botID, err)
	}

	if released != nil {
		g.Broadcast(MsgAvatarUpdate, *released)
	}
}

// Broadcast fans a message out to every bound connection. A write failure
// drops that subscriber silently; it never propagates to the others.
func (g *BotGateway) Broadcast(msgType string, payload interface{}) {
	g.mu.Lock()
	clients := make(map[string]*wsClient, len(g.conns))
	for id, cl := range g.conns {
		clients[id] = cl
	}
	g.mu.Unlock()

	for id, cl := range clients {
		if err := cl.writeJSON(fiber.Map{"type": msgType, "payload": payload}); err != nil {
			g.mu.Lock()
			if g.conns[id] == cl {
				delete(g.conns, id)
			}
			g.mu.Unlock()
		}
	}
}
