package models

import "time"

// ArtifactMetadata describes who submitted the blob and for which quest.
type ArtifactMetadata struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Submitter string `json:"submitter"`
	QuestID   string `json:"quest_id"`
}

// Artifact is an immutable, content-addressed blob of submitted work.
// ID is derived from the first 16 hex digits of the sha256 content hash.
type Artifact struct {
	ID        string           `json:"id"`
	Hash      string           `json:"hash"`
	Size      int64            `json:"size"`
	CreatedAt time.Time        `json:"created_at"`
	Metadata  ArtifactMetadata `json:"metadata"`
	Slug      string           `json:"slug,omitempty"`
	Content   []byte           `json:"content"`
}

// StoreResult is returned by ArtifactStore.Store.
type StoreResult struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// VerifyResult reports an integrity re-check of stored content.
// A mismatch is reported, never raised — reads stay available.
type VerifyResult struct {
	Valid        bool   `json:"valid"`
	StoredHash   string `json:"stored_hash"`
	ComputedHash string `json:"computed_hash"`
}
