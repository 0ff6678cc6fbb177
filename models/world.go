package models

import "time"

// AvatarState is the avatar action state machine's current state.
type AvatarState string

const (
	AvatarIdle        AvatarState = "IDLE"
	AvatarWalking     AvatarState = "WALKING"
	AvatarWorking     AvatarState = "WORKING"
	AvatarReading     AvatarState = "READING"
	AvatarCelebrating AvatarState = "CELEBRATING"
)

// Avatar is the in-world controllable entity. At most one bot may hold
// BotID at a time; the world store is the sole owner of avatar records.
type Avatar struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	X      int         `json:"x"`
	Y      int         `json:"y"`
	School string      `json:"school"`
	State  AvatarState `json:"state"`
	BotID  string      `json:"botId"`
}

// Bot is a registered agent. The live connection handle is session-scoped
// and owned by the gateway; when the connection closes the record is removed
// and the avatar's BotID is cleared.
type Bot struct {
	ID          string    `json:"id"`
	Token       string    `json:"token"`
	AvatarID    string    `json:"avatarId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Building is a static in-world structure.
type Building struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Kind   string `json:"kind"`
}

// WorldSnapshot is the full world state pushed to newly bound bots and
// embedded in checkpoints.
type WorldSnapshot struct {
	Avatars      []Avatar   `json:"avatars"`
	Buildings    []Building `json:"buildings"`
	IsBuildNight bool       `json:"isBuildNight"`
	Tick         int64      `json:"tick"`
	GameTime     string     `json:"gameTime"`
	BotCount     int        `json:"botCount"`
}
