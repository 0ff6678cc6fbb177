// services/scheduler.go
package services

import (
	"log"
	"time"

	"world-sync-system/models"
	"world-sync-system/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartCheckpointScheduler periodically snapshots the ledger plus world
// state into the checkpoint file via atomic rename. The sync broadcaster
// only ever reads this file, so it observes either the old or the new
// checkpoint, never a partial write.
func StartCheckpointScheduler(ledger *Ledger, world *WorldStore, checkpointPath string, interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			cp := models.Checkpoint{
				Ledger:  ledger.Events(),
				State:   world.Snapshot(),
				SavedAt: time.Now().UTC(),
			}
			if err := utils.WriteJSONAtomic(checkpointPath, cp); err != nil {
				log.Printf("❌ [CHECKPOINT] Failed to write checkpoint: %v", err)
			}
		}),
	)
}

// StartReconcileScheduler rebuilds the catalog from the stores and the
// ledger every few minutes, so drift from incremental counter updates never
// accumulates.
func StartReconcileScheduler(catalog *Catalog, artifacts *ArtifactStore, submissions *SubmissionRegistry, ledger *Ledger) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			artifactCount, err := artifacts.Count()
			if err != nil {
				log.Printf("[Reconcile] Artifact count error: %v", err)
				return
			}
			submissionCount, verifiedCount, err := submissions.Counts()
			if err != nil {
				log.Printf("[Reconcile] Submission count error: %v", err)
				return
			}
			catalog.Rebuild(artifactCount, submissionCount, verifiedCount, ledger.Events())
			log.Printf("✅ Catalog reconciled: %d artifact(s), %d submission(s)", artifactCount, submissionCount)
		}),
	)
}
