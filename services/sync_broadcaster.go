package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"world-sync-system/models"

	"github.com/gofiber/fiber/v2"
)

// SSE event names pushed to spectators.
const (
	sseCheckpoint  = "checkpoint"
	sseLedgerEvent = "ledger_event"
	sseOverlay     = "overlay"
	sseStatus      = "status"
	sseReset       = "reset"
)

// SyncBroadcaster turns ledger growth into incremental pushes for passive
// observers. It never talks to the ledger directly: it polls the persisted
// checkpoint file (mtime first, then parse), so its lifecycle is decoupled
// from whatever process writes the checkpoint. Each subscriber runs its own
// poll loop with its own observed cursor.
type SyncBroadcaster struct {
	checkpointPath    string
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	retryMs           int

	// read-only enrichment sources for overlay derivation
	submissions *SubmissionRegistry
	artifacts   *ArtifactStore
}

func NewSyncBroadcaster(checkpointPath string, submissions *SubmissionRegistry, artifacts *ArtifactStore) *SyncBroadcaster {
	return &SyncBroadcaster{
		checkpointPath:    checkpointPath,
		pollInterval:      2 * time.Second,
		heartbeatInterval: 15 * time.Second,
		retryMs:           3000,
		submissions:       submissions,
		artifacts:         artifacts,
	}
}

// observerState is one subscriber's view of the checkpoint file.
type observerState struct {
	lastModTime time.Time
	lastLen     int
	primed      bool
	degraded    bool
}

// deltaResult describes what one poll tick must emit.
type deltaResult struct {
	Reset     bool
	NewEvents []models.LedgerEvent
}

// diffLedger compares the observed length against the parsed ledger. A
// shrink is a reset (the checkpoint was replaced externally): one reset
// event, then the observed length resynchronizes to the new value before
// growth is evaluated, so no growth events accompany a reset tick.
func diffLedger(lastLen int, ledger []models.LedgerEvent) deltaResult {
	if len(ledger) < lastLen {
		return deltaResult{Reset: true}
	}
	if len(ledger) > lastLen {
		return deltaResult{NewEvents: ledger[lastLen:]}
	}
	return deltaResult{}
}

// StreamEvents streams checkpoint diffs and overlays for one spectator.
func (b *SyncBroadcaster) StreamEvents(c *fiber.Ctx) error {
	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ctx := c.Context()

	// Use fasthttp stream writer (THIS replaces Flush)
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		fmt.Fprintf(w, "retry: %d\n\n", b.retryMs)
		if err := w.Flush(); err != nil {
			return
		}

		st := &observerState{}

		// Bootstrap immediately so a new client gets a checkpoint without
		// waiting a full poll interval.
		if err := b.pollOnce(w, st); err != nil {
			return
		}

		poll := time.NewTicker(b.pollInterval)
		defer poll.Stop()
		heartbeat := time.NewTicker(b.heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-poll.C:
				if err := b.pollOnce(w, st); err != nil {
					// Client disconnected — drop silently.
					return
				}

			case <-heartbeat.C:
				// Comment-only line keeps idle proxies from timing out.
				w.WriteString(": hb\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

// pollOnce runs one tick of the diff engine for a single subscriber. The
// returned error is only ever a write failure on the subscriber.
func (b *SyncBroadcaster) pollOnce(w *bufio.Writer, st *observerState) error {
	fi, err := os.Stat(b.checkpointPath)
	if err != nil {
		if !st.degraded {
			st.degraded = true
			writeSSE(w, sseStatus, fiber.Map{"degraded": true, "reason": "checkpoint file absent"})
		}
		return w.Flush()
	}

	if st.primed && fi.ModTime().Equal(st.lastModTime) {
		return nil
	}

	data, err := os.ReadFile(b.checkpointPath)
	if err != nil {
		if !st.degraded {
			st.degraded = true
			writeSSE(w, sseStatus, fiber.Map{"degraded": true, "reason": "checkpoint unreadable"})
		}
		return w.Flush()
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		if !st.degraded {
			st.degraded = true
			writeSSE(w, sseStatus, fiber.Map{"degraded": true, "reason": "checkpoint unparseable"})
		}
		return w.Flush()
	}

	if st.degraded {
		st.degraded = false
		writeSSE(w, sseStatus, fiber.Map{"degraded": false})
	}
	st.lastModTime = fi.ModTime()

	if !st.primed {
		// First observation bootstraps from the snapshot; no history replay.
		st.primed = true
		st.lastLen = len(cp.Ledger)
	} else {
		d := diffLedger(st.lastLen, cp.Ledger)
		if d.Reset {
			writeSSE(w, sseReset, fiber.Map{
				"previousLength": st.lastLen,
				"newLength":      len(cp.Ledger),
			})
		}
		for _, ev := range d.NewEvents {
			writeSSE(w, sseLedgerEvent, ev)
			writeSSE(w, sseOverlay, b.overlayFor(ev))
		}
		st.lastLen = len(cp.Ledger)
	}

	// Full payload after deltas so late joiners bootstrap from one event.
	writeSSE(w, sseCheckpoint, cp)
	return w.Flush()
}

func writeSSE(w *bufio.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
