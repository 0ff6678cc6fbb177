package services

import (
	"fmt"

	"world-sync-system/models"

	"github.com/gosimple/slug"
)

// Overlay is the human-readable narration of one ledger event, pushed to
// spectators alongside the raw event. It never alters the ledger; it only
// describes it, cross-referencing submissions and artifacts by id when the
// event carries refs.
type Overlay struct {
	Sequence int      `json:"sequence"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
	Tags     []string `json:"tags"`
	Evidence []string `json:"evidence,omitempty"`
}

// overlayFor derives the overlay via a per-event-type mapping with a
// generic fallback.
func (b *SyncBroadcaster) overlayFor(ev models.LedgerEvent) Overlay {
	o := Overlay{
		Sequence: ev.Sequence,
		Tags:     []string{slug.Make(string(ev.Type))},
	}

	actor := ev.ActorID
	if actor == "" {
		actor = "the system"
	}

	switch ev.Type {
	case models.LedgerEventMint:
		o.Title = "Tokens minted"
		o.Detail = fmt.Sprintf("%s minted %d CC and %d token grant(s).", actor, ev.MintedCC(), len(ev.TokensMinted))
	case models.LedgerEventEscrowLock:
		o.Title = "Escrow locked"
		o.Detail = fmt.Sprintf("%s locked %s into escrow.", actor, describeTransfers(ev))
	case models.LedgerEventEscrowRelease:
		o.Title = "Escrow released"
		o.Detail = fmt.Sprintf("%s released %s from escrow.", actor, describeTransfers(ev))
	case models.LedgerEventStakeLock:
		o.Title = "Stake locked"
		o.Detail = fmt.Sprintf("%s staked %s.", actor, describeTransfers(ev))
	case models.LedgerEventStakeRelease:
		o.Title = "Stake released"
		o.Detail = fmt.Sprintf("%s recovered a stake of %s.", actor, describeTransfers(ev))
	case models.LedgerEventBlueprintExecution:
		o.Title = "Blueprint executed"
		o.Detail = fmt.Sprintf("%s executed a blueprint.", actor)
	case models.LedgerEventTransfer:
		o.Title = "Tokens transferred"
		o.Detail = fmt.Sprintf("%s transferred %s.", actor, describeTransfers(ev))
	case models.LedgerEventBurn:
		o.Title = "Tokens burned"
		o.Detail = fmt.Sprintf("%s burned %d token lot(s).", actor, len(ev.TokensBurned))
	case models.LedgerEventSpend:
		o.Title = "Tokens spent"
		o.Detail = fmt.Sprintf("%s spent %s.", actor, describeTransfers(ev))
	default:
		o.Title = "Ledger activity"
		o.Detail = fmt.Sprintf("%s recorded a %s event.", actor, ev.Type)
	}

	b.enrich(&o, ev)
	return o
}

// enrich cross-references the event's refs against the submission and
// artifact stores to extend the sentence and attach evidence links.
func (b *SyncBroadcaster) enrich(o *Overlay, ev models.LedgerEvent) {
	if subID, ok := ev.Refs["submission_id"]; ok {
		o.Evidence = append(o.Evidence, "/submissions/"+subID)
		if b.submissions != nil {
			if sub, err := b.submissions.Get(subID); err == nil && sub != nil {
				if sub.QuestID != "" {
					o.Detail += fmt.Sprintf(" Submitted for quest %s.", sub.QuestID)
					o.Tags = append(o.Tags, slug.Make("quest-"+sub.QuestID))
				}
				for _, artifactID := range sub.ArtifactIDs {
					o.Evidence = append(o.Evidence, "/artifacts/"+artifactID)
				}
			}
		}
	}

	if artifactID, ok := ev.Refs["artifact_id"]; ok {
		o.Evidence = append(o.Evidence, "/artifacts/"+artifactID)
		if b.artifacts != nil {
			if artifact, err := b.artifacts.Get(artifactID); err == nil && artifact != nil && artifact.Metadata.Name != "" {
				o.Detail += fmt.Sprintf(" Evidence: %s.", artifact.Metadata.Name)
			}
		}
	}

	if contractID, ok := ev.Refs["contract_id"]; ok {
		o.Tags = append(o.Tags, slug.Make("contract-"+contractID))
	}
	if stampID, ok := ev.Refs["stamp_id"]; ok {
		o.Tags = append(o.Tags, slug.Make("stamp-"+stampID))
	}
	if blueprintID, ok := ev.Refs["blueprint_id"]; ok {
		o.Tags = append(o.Tags, slug.Make("blueprint-"+blueprintID))
	}
}

func describeTransfers(ev models.LedgerEvent) string {
	var total int64
	tokenType := ""
	mixed := false
	for _, t := range ev.TokensTransferred {
		total += t.Amount
		if tokenType != "" && t.TokenType != tokenType {
			mixed = true
		}
		tokenType = t.TokenType
	}
	if total == 0 {
		return "tokens"
	}
	if mixed {
		return fmt.Sprintf("%d tokens", total)
	}
	return fmt.Sprintf("%d %s", total, tokenType)
}
