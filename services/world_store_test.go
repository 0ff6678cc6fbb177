package services

import (
	"testing"
	"time"

	"world-sync-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func avatarByID(t *testing.T, w *WorldStore, id string) models.Avatar {
	t.Helper()
	for _, a := range w.Snapshot().Avatars {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("avatar %s not found", id)
	return models.Avatar{}
}

func TestClaimPrefersUnassignedPool(t *testing.T) {
	w := NewWorldStore()
	before := len(w.Snapshot().Avatars)

	avatar := w.ClaimAvatar("bot-1")
	assert.Equal(t, "bot-1", avatar.BotID)
	assert.Len(t, w.Snapshot().Avatars, before)
}

func TestClaimSynthesizesWhenPoolExhausted(t *testing.T) {
	w := NewWorldStore()
	pool := len(w.Snapshot().Avatars)

	for i := 0; i < pool; i++ {
		w.ClaimAvatar("bot-" + string(rune('a'+i)))
	}
	extra := w.ClaimAvatar("bot-extra")

	assert.Equal(t, "bot-extra", extra.BotID)
	assert.Len(t, w.Snapshot().Avatars, pool+1)
}

func TestAvatarExclusivity(t *testing.T) {
	w := NewWorldStore()

	owners := map[string]string{} // avatarID → botID
	for i := 0; i < 10; i++ {
		botID := "bot-" + string(rune('0'+i))
		avatar := w.ClaimAvatar(botID)
		existing, taken := owners[avatar.ID]
		require.False(t, taken, "avatar %s already owned by %s", avatar.ID, existing)
		owners[avatar.ID] = botID
	}
}

func TestReleaseClearsOwner(t *testing.T) {
	w := NewWorldStore()

	avatar := w.ClaimAvatar("bot-1")
	released := w.ReleaseAvatar("bot-1")
	require.NotNil(t, released)
	assert.Equal(t, avatar.ID, released.ID)
	assert.Empty(t, released.BotID)
	assert.Empty(t, avatarByID(t, w, avatar.ID).BotID)

	assert.Nil(t, w.ReleaseAvatar("bot-1"))
}

func TestReleaseCancelsPendingRevert(t *testing.T) {
	w := NewWorldStore()
	w.SetActionDurations(map[string]time.Duration{
		"MOVE": 30 * time.Millisecond,
	})
	avatar := w.ClaimAvatar("bot-1")

	_, err := w.ApplyAction(avatar.ID, "MOVE", ActionPayload{X: 5, Y: 5})
	require.NoError(t, err)

	released := w.ReleaseAvatar("bot-1")
	require.NotNil(t, released)
	assert.Equal(t, models.AvatarIdle, released.State)

	w.mu.Lock()
	_, pending := w.timers[avatar.ID]
	w.mu.Unlock()
	assert.False(t, pending, "release must drop the pending revert timer")

	// Past MOVE's window: no stale timer wakes up against the pooled avatar.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, models.AvatarIdle, avatarByID(t, w, avatar.ID).State)
}

func TestMoveClampsCoordinates(t *testing.T) {
	w := NewWorldStore()
	avatar := w.ClaimAvatar("bot-1")

	result, err := w.ApplyAction(avatar.ID, "MOVE", ActionPayload{X: -5, Y: 99})
	require.NoError(t, err)
	assert.Equal(t, 0, result.X)
	assert.Equal(t, WorldSize-1, result.Y)
	assert.Equal(t, models.AvatarWalking, result.State)
}

func TestUnknownActionIsNonFatal(t *testing.T) {
	w := NewWorldStore()
	avatar := w.ClaimAvatar("bot-1")

	_, err := w.ApplyAction(avatar.ID, "TELEPORT", ActionPayload{})
	assert.ErrorIs(t, err, ErrUnknownAction)

	// The store still accepts valid actions afterwards.
	_, err = w.ApplyAction(avatar.ID, "READ", ActionPayload{})
	assert.NoError(t, err)
}

func TestActionRevertsToIdle(t *testing.T) {
	w := NewWorldStore()
	w.SetActionDurations(map[string]time.Duration{
		"INTERACT": 30 * time.Millisecond,
	})
	avatar := w.ClaimAvatar("bot-1")

	_, err := w.ApplyAction(avatar.ID, "INTERACT", ActionPayload{})
	require.NoError(t, err)
	assert.Equal(t, models.AvatarWorking, avatarByID(t, w, avatar.ID).State)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, models.AvatarIdle, avatarByID(t, w, avatar.ID).State)
}

func TestActionSupersession(t *testing.T) {
	w := NewWorldStore()
	w.SetActionDurations(map[string]time.Duration{
		"MOVE":      30 * time.Millisecond,
		"CELEBRATE": 120 * time.Millisecond,
	})
	avatar := w.ClaimAvatar("bot-1")

	_, err := w.ApplyAction(avatar.ID, "MOVE", ActionPayload{X: 5, Y: 5})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = w.ApplyAction(avatar.ID, "CELEBRATE", ActionPayload{})
	require.NoError(t, err)

	// Past MOVE's window: the superseded timer must not have reverted the
	// celebration.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, models.AvatarCelebrating, avatarByID(t, w, avatar.ID).State)

	// Past CELEBRATE's own window: now idle.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, models.AvatarIdle, avatarByID(t, w, avatar.ID).State)
}

func TestBuildNightToggleBroadcasts(t *testing.T) {
	w := NewWorldStore()

	var gotType string
	w.SetBroadcast(func(msgType string, payload interface{}) {
		gotType = msgType
	})

	assert.True(t, w.ToggleBuildNight())
	assert.Equal(t, "BUILD_NIGHT", gotType)
	assert.False(t, w.ToggleBuildNight())
	assert.False(t, w.Snapshot().IsBuildNight)
}

func TestResetReseedsWorld(t *testing.T) {
	w := NewWorldStore()
	pool := len(w.Snapshot().Avatars)

	w.ClaimAvatar("bot-1")
	w.AddBot(models.Bot{ID: "bot-1", Token: "abcdefgh"})
	w.SpawnAvatar()

	w.Reset()

	snap := w.Snapshot()
	assert.Len(t, snap.Avatars, pool)
	assert.Zero(t, snap.BotCount)
	for _, a := range snap.Avatars {
		assert.Empty(t, a.BotID)
		assert.Equal(t, models.AvatarIdle, a.State)
	}
}
