package models

import "time"

// LedgerEventType categorizes an economic/state-change event.
type LedgerEventType string

const (
	LedgerEventMint               LedgerEventType = "mint"
	LedgerEventEscrowLock         LedgerEventType = "escrow_lock"
	LedgerEventEscrowRelease      LedgerEventType = "escrow_release"
	LedgerEventStakeLock          LedgerEventType = "stake_lock"
	LedgerEventStakeRelease       LedgerEventType = "stake_release"
	LedgerEventBlueprintExecution LedgerEventType = "blueprint_execution"
	LedgerEventTransfer           LedgerEventType = "transfer"
	LedgerEventBurn               LedgerEventType = "burn"
	LedgerEventSpend              LedgerEventType = "spend"
)

// GenesisHash is the prev_hash of the very first ledger event.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// TokenMint credits newly created tokens to a recipient.
type TokenMint struct {
	TokenType string `json:"token_type"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
}

// TokenBurn destroys tokens held by an agent.
type TokenBurn struct {
	TokenType string `json:"token_type"`
	Amount    int64  `json:"amount"`
	Holder    string `json:"holder"`
}

// TokenTransfer moves tokens between two agents.
type TokenTransfer struct {
	TokenType string `json:"token_type"`
	Amount    int64  `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// CCChange adjusts an agent's creative-credit balance.
type CCChange struct {
	AgentID string `json:"agent_id"`
	Delta   int64  `json:"delta"`
	Reason  string `json:"reason,omitempty"`
}

// LedgerEvent is an immutable, hash-chained entry in the economic log.
// Sequence equals the event's index in the log; PrevHash equals the Hash of
// the event at Sequence-1 (GenesisHash at index 0); Hash covers every field
// except Hash itself.
type LedgerEvent struct {
	Sequence          int             `json:"sequence"`
	Timestamp         time.Time       `json:"timestamp"`
	Type              LedgerEventType `json:"type"`
	ActorID           string          `json:"actor_id"`
	TokensMinted      []TokenMint     `json:"tokens_minted,omitempty"`
	TokensBurned      []TokenBurn     `json:"tokens_burned,omitempty"`
	TokensTransferred []TokenTransfer `json:"tokens_transferred,omitempty"`
	CCChanges         []CCChange      `json:"cc_changes,omitempty"`

	// Refs cross-references related records by role, e.g. "submission_id",
	// "contract_id", "stamp_id", "blueprint_id". Used by overlay derivation.
	Refs map[string]string `json:"refs,omitempty"`

	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// MintedCC sums the creative-credit deltas carried by the event.
func (e LedgerEvent) MintedCC() int64 {
	var total int64
	for _, cc := range e.CCChanges {
		if cc.Delta > 0 {
			total += cc.Delta
		}
	}
	return total
}
