package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"world-sync-system/models"
	"world-sync-system/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// catalogMirrorRowID keys the singleton mirror row.
const catalogMirrorRowID = "global"

// CatalogMirrorClient holds the DB the catalog aggregates are mirrored into.
type CatalogMirrorClient struct {
	DB *gorm.DB
}

func NewCatalogMirrorClient(db *gorm.DB) *CatalogMirrorClient {
	return &CatalogMirrorClient{DB: db}
}

// PollCatalog mirrors the catalog stats into Postgres on an interval. The
// JSON catalog file stays the source of truth; this table only serves
// external analytics, so a failed upsert is logged and retried next tick.
func PollCatalog(ctx context.Context, client *CatalogMirrorClient, catalog *services.Catalog, ledger *services.Ledger, pollInterval time.Duration) {
	log.Println("Starting catalog mirror polling (DB-backed)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Catalog mirror polling stopped.")
			return
		case <-ticker.C:
			stats := catalog.Stats()

			tokensJSON, err := json.Marshal(stats.TotalMintedTokens)
			if err != nil {
				log.Printf("❌ Failed to marshal minted token map: %v", err)
				continue
			}

			row := models.CatalogMirror{
				ID:                catalogMirrorRowID,
				TotalArtifacts:    stats.TotalArtifacts,
				TotalSubmissions:  stats.TotalSubmissions,
				TotalVerified:     stats.TotalVerified,
				TotalMintedCC:     stats.TotalMintedCC,
				TotalMintedTokens: string(tokensJSON),
				LedgerLength:      int64(ledger.Length()),
				UpdatedAt:         time.Now().UTC(),
			}

			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"total_artifacts",
						"total_submissions",
						"total_verified",
						"total_minted_cc",
						"total_minted_tokens",
						"ledger_length",
						"updated_at",
					}),
				},
			).Create(&row).Error; err != nil {
				log.Printf("❌ Failed to upsert catalog_mirror: %v", err)
				continue
			}
		}
	}
}
