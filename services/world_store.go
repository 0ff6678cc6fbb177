package services

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"world-sync-system/models"

	"github.com/google/uuid"
)

// WorldSize is the side length of the tile grid; coordinates live in
// [0, WorldSize-1] on both axes.
const WorldSize = 32

var ErrUnknownAction = errors.New("unknown action type")
var ErrAvatarNotFound = errors.New("avatar not found")

// Action types accepted by the avatar state machine, with the state each
// one enters and the delay before the automatic reversion to IDLE.
var actionStates = map[string]models.AvatarState{
	"MOVE":      models.AvatarWalking,
	"INTERACT":  models.AvatarWorking,
	"READ":      models.AvatarReading,
	"CELEBRATE": models.AvatarCelebrating,
}

var defaultActionDurations = map[string]time.Duration{
	"MOVE":      1000 * time.Millisecond,
	"INTERACT":  2000 * time.Millisecond,
	"READ":      1500 * time.Millisecond,
	"CELEBRATE": 3000 * time.Millisecond,
}

// ActionPayload carries per-action parameters; only MOVE uses coordinates.
type ActionPayload struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Target string `json:"target,omitempty"`
}

// ActionResult is the correlated outcome of an accepted action.
type ActionResult struct {
	AvatarID   string             `json:"avatarId"`
	State      models.AvatarState `json:"state"`
	X          int                `json:"x"`
	Y          int                `json:"y"`
	DurationMs int64              `json:"durationMs"`
}

type avatarTimer struct {
	timer *time.Timer
	gen   uint64
}

// WorldStore owns the mutable avatar/bot/building registries and the avatar
// action state machine. All access goes through its mutex; handlers receive
// the store by reference instead of relying on ambient shared state.
//
// Each accepted action replaces the avatar's pending reversion: the previous
// timer is stopped and a per-avatar generation counter is bumped, so a timer
// that races the Stop still no-ops when it sees a stale generation.
type WorldStore struct {
	mu        sync.Mutex
	avatars   map[string]*models.Avatar
	order     []string // avatar ids in creation order
	bots      map[string]*models.Bot
	buildings []models.Building

	isBuildNight bool
	startedAt    time.Time

	timers    map[string]*avatarTimer
	durations map[string]time.Duration

	// broadcast fans out world changes (avatar updates, build night) to all
	// connected clients. Set once at wiring time; nil is a no-op.
	broadcast func(msgType string, payload interface{})
}

func NewWorldStore() *WorldStore {
	w := &WorldStore{
		avatars:   make(map[string]*models.Avatar),
		bots:      make(map[string]*models.Bot),
		timers:    make(map[string]*avatarTimer),
		durations: defaultActionDurations,
		startedAt: time.Now(),
	}
	w.seed()
	return w
}

// seed populates the default village: named avatars in the unassigned pool
// and the static buildings.
func (w *WorldStore) seed() {
	schools := []string{"forge", "archive", "observatory", "gardens"}
	names := []string{"Ember", "Quill", "Vega", "Moss", "Cinder", "Lumen"}
	for i, name := range names {
		id := uuid.NewString()
		w.avatars[id] = &models.Avatar{
			ID:     id,
			Name:   name,
			X:      rand.Intn(WorldSize),
			Y:      rand.Intn(WorldSize),
			School: schools[i%len(schools)],
			State:  models.AvatarIdle,
		}
		w.order = append(w.order, id)
	}

	w.buildings = []models.Building{
		{ID: "forge-hall", Name: "Forge Hall", X: 4, Y: 4, Width: 5, Height: 4, Kind: "workshop"},
		{ID: "archive", Name: "The Archive", X: 22, Y: 6, Width: 4, Height: 4, Kind: "library"},
		{ID: "observatory", Name: "Observatory", X: 14, Y: 24, Width: 3, Height: 3, Kind: "tower"},
		{ID: "mint", Name: "The Mint", X: 6, Y: 20, Width: 4, Height: 3, Kind: "treasury"},
	}
}

// SetBroadcast wires the fan-out sink for world changes.
func (w *WorldStore) SetBroadcast(fn func(msgType string, payload interface{})) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.broadcast = fn
}

// SetActionDurations overrides the auto-revert delays (tests).
func (w *WorldStore) SetActionDurations(d map[string]time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.durations = d
}

// SpawnAvatar creates a fresh unowned avatar at a random tile.
func (w *WorldStore) SpawnAvatar() models.Avatar {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.spawnLocked()
}

func (w *WorldStore) spawnLocked() *models.Avatar {
	id := uuid.NewString()
	avatar := &models.Avatar{
		ID:     id,
		Name:   fmt.Sprintf("Wanderer-%s", id[:4]),
		X:      rand.Intn(WorldSize),
		Y:      rand.Intn(WorldSize),
		School: "unaffiliated",
		State:  models.AvatarIdle,
	}
	w.avatars[id] = avatar
	w.order = append(w.order, id)
	return avatar
}

// ClaimAvatar assigns an avatar to botID: the first avatar with no current
// controller, or a freshly synthesized one when the pool is exhausted. The
// claim happens under the lock, so two bots can never hold the same avatar.
func (w *WorldStore) ClaimAvatar(botID string) models.Avatar {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range w.order {
		if w.avatars[id].BotID == "" {
			w.avatars[id].BotID = botID
			return *w.avatars[id]
		}
	}
	avatar := w.spawnLocked()
	avatar.BotID = botID
	return *avatar
}

// ReleaseAvatar clears the controller of the given bot's avatar and returns
// the released avatar, or nil when the bot held none. Any pending action
// reversion is cancelled and the avatar returns to the pool idle.
func (w *WorldStore) ReleaseAvatar(botID string) *models.Avatar {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, avatar := range w.avatars {
		if avatar.BotID == botID {
			avatar.BotID = ""
			avatar.State = models.AvatarIdle
			if at := w.timers[avatar.ID]; at != nil {
				at.timer.Stop()
				delete(w.timers, avatar.ID)
			}
			released := *avatar
			return &released
		}
	}
	return nil
}

// AddBot records a registered bot.
func (w *WorldStore) AddBot(bot models.Bot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := bot
	w.bots[bot.ID] = &b
}

// GetBot returns the bot record, or nil when not registered.
func (w *WorldStore) GetBot(botID string) *models.Bot {
	w.mu.Lock()
	defer w.mu.Unlock()
	bot, ok := w.bots[botID]
	if !ok {
		return nil
	}
	b := *bot
	return &b
}

// RemoveBot deletes the bot record.
func (w *WorldStore) RemoveBot(botID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.bots, botID)
}

// ApplyAction runs one step of the avatar state machine: the avatar enters
// the action's target state immediately and a single delayed reversion to
// IDLE is scheduled, replacing any pending one. MOVE clamps the target into
// the grid rather than rejecting it.
func (w *WorldStore) ApplyAction(avatarID, actionType string, payload ActionPayload) (ActionResult, error) {
	w.mu.Lock()

	state, ok := actionStates[actionType]
	if !ok {
		w.mu.Unlock()
		return ActionResult{}, ErrUnknownAction
	}
	avatar, ok := w.avatars[avatarID]
	if !ok {
		w.mu.Unlock()
		return ActionResult{}, ErrAvatarNotFound
	}

	if actionType == "MOVE" {
		avatar.X = clamp(payload.X, 0, WorldSize-1)
		avatar.Y = clamp(payload.Y, 0, WorldSize-1)
	}
	avatar.State = state

	duration := w.durations[actionType]
	w.scheduleRevertLocked(avatarID, duration)

	result := ActionResult{
		AvatarID:   avatarID,
		State:      avatar.State,
		X:          avatar.X,
		Y:          avatar.Y,
		DurationMs: duration.Milliseconds(),
	}
	update := *avatar
	broadcast := w.broadcast
	w.mu.Unlock()

	if broadcast != nil {
		broadcast("AVATAR_UPDATE", update)
	}
	return result, nil
}

// scheduleRevertLocked replaces the avatar's pending reversion. Must be
// called with the store lock held.
func (w *WorldStore) scheduleRevertLocked(avatarID string, after time.Duration) {
	existing := w.timers[avatarID]
	gen := uint64(1)
	if existing != nil {
		existing.timer.Stop()
		gen = existing.gen + 1
	}

	at := &avatarTimer{gen: gen}
	at.timer = time.AfterFunc(after, func() {
		w.revert(avatarID, gen)
	})
	w.timers[avatarID] = at
}

// revert is the timer fire path. The generation check makes a superseded
// timer a no-op even if it fired before Stop took effect.
func (w *WorldStore) revert(avatarID string, gen uint64) {
	w.mu.Lock()

	current := w.timers[avatarID]
	if current == nil || current.gen != gen {
		w.mu.Unlock()
		return
	}
	avatar, ok := w.avatars[avatarID]
	if !ok || avatar.State == models.AvatarIdle {
		w.mu.Unlock()
		return
	}

	avatar.State = models.AvatarIdle
	update := *avatar
	broadcast := w.broadcast
	w.mu.Unlock()

	if broadcast != nil {
		broadcast("AVATAR_UPDATE", update)
	}
}

// ToggleBuildNight flips the build-night flag and fans it out.
func (w *WorldStore) ToggleBuildNight() bool {
	w.mu.Lock()
	w.isBuildNight = !w.isBuildNight
	value := w.isBuildNight
	broadcast := w.broadcast
	w.mu.Unlock()

	if broadcast != nil {
		broadcast("BUILD_NIGHT", map[string]bool{"isBuildNight": value})
	}
	return value
}

// Snapshot returns the full world state. Tick and game time are derived
// from wall-clock elapsed time: one tick per 100ms, one in-world day per 20
// real minutes.
func (w *WorldStore) Snapshot() models.WorldSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	avatars := make([]models.Avatar, 0, len(w.order))
	for _, id := range w.order {
		avatars = append(avatars, *w.avatars[id])
	}
	buildings := make([]models.Building, len(w.buildings))
	copy(buildings, w.buildings)

	elapsed := time.Since(w.startedAt)
	dayFraction := float64(elapsed%(20*time.Minute)) / float64(20*time.Minute)
	minutes := int(dayFraction * 24 * 60)

	return models.WorldSnapshot{
		Avatars:      avatars,
		Buildings:    buildings,
		IsBuildNight: w.isBuildNight,
		Tick:         int64(elapsed / (100 * time.Millisecond)),
		GameTime:     fmt.Sprintf("%02d:%02d", minutes/60, minutes%60),
		BotCount:     len(w.bots),
	}
}

// BotIDs returns the registered bot ids, sorted (tests and diagnostics).
func (w *WorldStore) BotIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.bots))
	for id := range w.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset drops every avatar, bot and pending timer and reseeds the default
// village.
func (w *WorldStore) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, at := range w.timers {
		at.timer.Stop()
	}
	w.timers = make(map[string]*avatarTimer)
	w.avatars = make(map[string]*models.Avatar)
	w.order = nil
	w.bots = make(map[string]*models.Bot)
	w.isBuildNight = false
	w.startedAt = time.Now()
	w.seed()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
