// models/catalog_mirror.go
package models

import "time"

// CatalogMirror mirrors catalog aggregates into Postgres for external
// analytics. The JSON catalog file stays the source of truth — this table is
// upserted by the mirror worker and never read back by this service.
// Table name: catalog_mirror
type CatalogMirror struct {
	ID                string    `gorm:"primaryKey;type:varchar(32);not null" json:"id"`
	TotalArtifacts    int64     `gorm:"not null" json:"total_artifacts"`
	TotalSubmissions  int64     `gorm:"not null" json:"total_submissions"`
	TotalVerified     int64     `gorm:"not null" json:"total_verified"`
	TotalMintedCC     int64     `gorm:"not null" json:"total_minted_cc"`
	TotalMintedTokens string    `gorm:"type:jsonb;not null;default:'{}'" json:"total_minted_tokens"` // JSON map token type → amount
	LedgerLength      int64     `gorm:"not null" json:"ledger_length"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

// TableName pins the explicit table binding for GORM.
func (CatalogMirror) TableName() string {
	return "catalog_mirror"
}
