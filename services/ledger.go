package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"world-sync-system/models"

	"github.com/gofiber/fiber/v2"
)

// Ledger is the append-only, hash-chained event log. Events are held in
// memory for queries and persisted to a JSONL segment file: each append
// writes exactly one line with O_APPEND, so a crash mid-write can at worst
// leave one truncated trailing line, never corrupt earlier history; OpenLedger
// truncates that remnant away so later appends never glue onto it.
type Ledger struct {
	mu       sync.Mutex
	path     string
	events   []models.LedgerEvent
	headHash string

	// catalog, when set, receives mint totals on the HTTP append path.
	catalog *Catalog
}

// LedgerQuery filters a Query call. Type is exact match; Limit returns the
// most recent N events, preserving log order.
type LedgerQuery struct {
	Type  models.LedgerEventType
	Limit int
}

// IntegrityResult reports a hash-chain walk.
type IntegrityResult struct {
	Valid  bool   `json:"valid"`
	Events int    `json:"events"`
	Error  string `json:"error,omitempty"`
}

// OpenLedger loads the segment file at path if it exists. Every committed
// event is a newline-terminated line, so bytes after the final newline are a
// crash remnant: they are dropped and the file is truncated back to the last
// committed line, keeping the segment safe for O_APPEND writes. A complete
// line that fails to parse is mid-file corruption and fails the open.
func OpenLedger(path string, catalog *Catalog) (*Ledger, error) {
	l := &Ledger{path: path, headHash: models.GenesisHash, catalog: catalog}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}

	committed := len(data)
	if i := bytes.LastIndexByte(data, '\n'); i < len(data)-1 {
		committed = i + 1
	}

	for _, line := range bytes.Split(data[:committed], []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var ev models.LedgerEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("corrupt ledger line at sequence %d: %w", len(l.events), err)
		}
		l.events = append(l.events, ev)
		l.headHash = ev.Hash
	}

	if committed < len(data) {
		log.Printf("⚠️  [LEDGER] Dropping %d-byte crash remnant after %d committed event(s)", len(data)-committed, len(l.events))
		if err := os.Truncate(path, int64(committed)); err != nil {
			return nil, fmt.Errorf("failed to truncate crash remnant: %w", err)
		}
	}
	return l, nil
}

// Append assigns sequence, prev_hash and hash to ev, persists it, and
// returns the completed event. The ledger never deduplicates: appending the
// same logical event twice yields two entries with distinct chain fields.
func (l *Ledger) Append(ev models.LedgerEvent) (models.LedgerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Sequence = len(l.events)
	ev.PrevHash = l.headHash
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	hash, err := hashEvent(ev)
	if err != nil {
		return models.LedgerEvent{}, fmt.Errorf("failed to hash event: %w", err)
	}
	ev.Hash = hash

	line, err := json.Marshal(ev)
	if err != nil {
		return models.LedgerEvent{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return models.LedgerEvent{}, err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return models.LedgerEvent{}, err
	}
	if err := f.Close(); err != nil {
		return models.LedgerEvent{}, err
	}

	l.events = append(l.events, ev)
	l.headHash = ev.Hash
	return ev, nil
}

// hashEvent computes the chain hash: sha256 over the JSON encoding of every
// event field except Hash (PrevHash included).
func hashEvent(ev models.LedgerEvent) (string, error) {
	ev.Hash = ""
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Query returns events matching q in log order.
func (l *Ledger) Query(q LedgerQuery) []models.LedgerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]models.LedgerEvent, 0, len(l.events))
	for _, ev := range l.events {
		if q.Type != "" && ev.Type != q.Type {
			continue
		}
		matched = append(matched, ev)
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[len(matched)-q.Limit:]
	}
	return matched
}

// Events returns a copy of the full log.
func (l *Ledger) Events() []models.LedgerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.LedgerEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Length returns the number of appended events.
func (l *Ledger) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// VerifyIntegrity walks the log once and fails at the first index where
// sequence does not equal position, or where prev_hash does not equal the
// previous event's stored hash. It checks the chain links only; it does not
// recompute hashes, so a tampered stored hash surfaces one position
// downstream at the successor's prev_hash check. Diagnostic only: the log is
// never mutated or quarantined.
func (l *Ledger) VerifyIntegrity() IntegrityResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := models.GenesisHash
	for i, ev := range l.events {
		if ev.Sequence != i {
			return IntegrityResult{Valid: false, Events: len(l.events), Error: fmt.Sprintf("Sequence mismatch at %d", i)}
		}
		if ev.PrevHash != prevHash {
			return IntegrityResult{Valid: false, Events: len(l.events), Error: fmt.Sprintf("Hash chain broken at %d", i)}
		}
		prevHash = ev.Hash
	}
	return IntegrityResult{Valid: true, Events: len(l.events)}
}

// AppendEvent accepts a new economic event from the economy engine.
// Mint events also feed the catalog's running mint totals.
func (l *Ledger) AppendEvent(c *fiber.Ctx) error {
	var ev models.LedgerEvent
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event body"})
	}
	if ev.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "event type is required"})
	}

	appended, err := l.Append(ev)
	if err != nil {
		log.Printf("❌ [LEDGER] Append failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to append event"})
	}

	if appended.Type == models.LedgerEventMint && l.catalog != nil {
		tokens := make(map[string]int64)
		for _, mint := range appended.TokensMinted {
			tokens[mint.TokenType] += mint.Amount
		}
		l.catalog.RecordMint(appended.MintedCC(), tokens)
	}

	return c.Status(fiber.StatusCreated).JSON(appended)
}

// QueryEvents serves GET /ledger with optional type and limit filters.
func (l *Ledger) QueryEvents(c *fiber.Ctx) error {
	q := LedgerQuery{Type: models.LedgerEventType(c.Query("type"))}
	if limit := c.QueryInt("limit"); limit > 0 {
		q.Limit = limit
	}
	return c.JSON(fiber.Map{"events": l.Query(q)})
}

// VerifyLedger serves GET /ledger/verify.
func (l *Ledger) VerifyLedger(c *fiber.Ctx) error {
	return c.JSON(l.VerifyIntegrity())
}
