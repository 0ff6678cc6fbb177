package models

import "time"

// Checkpoint is the periodically persisted snapshot combining the ledger and
// world state. The sync broadcaster consumes it read-only through the
// filesystem; it never writes it.
type Checkpoint struct {
	Ledger  []LedgerEvent `json:"ledger"`
	State   WorldSnapshot `json:"state"`
	SavedAt time.Time     `json:"savedAt"`
}
