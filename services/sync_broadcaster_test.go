package services

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"world-sync-system/models"
	"world-sync-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffLedgerGrowth(t *testing.T) {
	ledger := []models.LedgerEvent{
		{Sequence: 0}, {Sequence: 1}, {Sequence: 2}, {Sequence: 3}, {Sequence: 4},
	}

	d := diffLedger(2, ledger)
	assert.False(t, d.Reset)
	require.Len(t, d.NewEvents, 3)
	assert.Equal(t, 2, d.NewEvents[0].Sequence)
	assert.Equal(t, 4, d.NewEvents[2].Sequence)
}

func TestDiffLedgerReset(t *testing.T) {
	ledger := []models.LedgerEvent{{Sequence: 0}, {Sequence: 1}}

	d := diffLedger(5, ledger)
	assert.True(t, d.Reset)
	assert.Empty(t, d.NewEvents)
}

func TestDiffLedgerUnchanged(t *testing.T) {
	ledger := []models.LedgerEvent{{Sequence: 0}}
	d := diffLedger(1, ledger)
	assert.False(t, d.Reset)
	assert.Empty(t, d.NewEvents)
}

func writeCheckpoint(t *testing.T, path string, events []models.LedgerEvent, mtime time.Time) {
	t.Helper()
	cp := models.Checkpoint{Ledger: events, SavedAt: mtime}
	require.NoError(t, utils.WriteJSONAtomic(path, cp))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestPollOnceBootstrapAndDiff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	b := NewSyncBroadcaster(path, nil, nil)
	st := &observerState{}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	writeCheckpoint(t, path, []models.LedgerEvent{{Sequence: 0, Type: models.LedgerEventMint}}, base)

	// Bootstrap: checkpoint only, no history replay.
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, b.pollOnce(w, st))
	out := buf.String()
	assert.Contains(t, out, "event: checkpoint")
	assert.NotContains(t, out, "event: ledger_event")
	assert.Equal(t, 1, st.lastLen)

	// Unchanged mtime: nothing at all.
	buf.Reset()
	require.NoError(t, b.pollOnce(w, st))
	assert.Empty(t, buf.String())

	// Growth: each new event once, in order, plus an overlay each, plus the
	// full checkpoint.
	writeCheckpoint(t, path, []models.LedgerEvent{
		{Sequence: 0, Type: models.LedgerEventMint},
		{Sequence: 1, Type: models.LedgerEventTransfer, ActorID: "bot-1"},
		{Sequence: 2, Type: models.LedgerEventBurn, ActorID: "bot-2"},
	}, base.Add(5*time.Second))

	buf.Reset()
	require.NoError(t, b.pollOnce(w, st))
	out = buf.String()
	assert.Equal(t, 2, strings.Count(out, "event: ledger_event"))
	assert.Equal(t, 2, strings.Count(out, "event: overlay"))
	assert.Equal(t, 1, strings.Count(out, "event: checkpoint"))
	assert.Equal(t, 3, st.lastLen)

	first := strings.Index(out, `"sequence":1`)
	second := strings.Index(out, `"sequence":2`)
	assert.Greater(t, first, -1)
	assert.Greater(t, second, first)
}

func TestPollOnceEmitsSingleResetOnShrink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	b := NewSyncBroadcaster(path, nil, nil)
	st := &observerState{}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	writeCheckpoint(t, path, []models.LedgerEvent{{Sequence: 0}, {Sequence: 1}, {Sequence: 2}}, base)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, b.pollOnce(w, st))
	require.Equal(t, 3, st.lastLen)

	// External process replaced the checkpoint with a shorter ledger.
	writeCheckpoint(t, path, []models.LedgerEvent{{Sequence: 0}}, base.Add(time.Minute))

	buf.Reset()
	require.NoError(t, b.pollOnce(w, st))
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "event: reset"))
	assert.NotContains(t, out, "event: ledger_event")
	assert.Equal(t, 1, st.lastLen)
}

func TestPollOnceDegradedStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	b := NewSyncBroadcaster(path, nil, nil)
	st := &observerState{}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	// Absent checkpoint: one status event, not repeated every tick.
	require.NoError(t, b.pollOnce(w, st))
	assert.Equal(t, 1, strings.Count(buf.String(), "event: status"))
	buf.Reset()
	require.NoError(t, b.pollOnce(w, st))
	assert.Empty(t, buf.String())

	// Recovery announces itself once, then serves the checkpoint.
	writeCheckpoint(t, path, []models.LedgerEvent{}, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	buf.Reset()
	require.NoError(t, b.pollOnce(w, st))
	out := buf.String()
	assert.Contains(t, out, `"degraded":false`)
	assert.Contains(t, out, "event: checkpoint")
}
