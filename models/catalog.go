package models

import "time"

// CatalogStats holds denormalized aggregates over artifacts, submissions and
// mints. Derived data: always reconstructable from the ledger plus the
// artifact/submission stores, and treated as a cache, not a source of truth.
type CatalogStats struct {
	TotalArtifacts    int64            `json:"total_artifacts"`
	TotalSubmissions  int64            `json:"total_submissions"`
	TotalVerified     int64            `json:"total_verified"`
	TotalMintedCC     int64            `json:"total_minted_cc"`
	TotalMintedTokens map[string]int64 `json:"total_minted_tokens"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
