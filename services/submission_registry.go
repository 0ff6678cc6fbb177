package services

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"world-sync-system/models"
	"world-sync-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SubmissionRegistry holds mutable submission records, one JSON file per
// submission. Records reference artifacts by id (never own them), are
// created on submission, mutated by verification outcomes, and never
// deleted.
type SubmissionRegistry struct {
	mu      sync.RWMutex
	dir     string
	catalog *Catalog
}

func NewSubmissionRegistry(dir string, catalog *Catalog) *SubmissionRegistry {
	return &SubmissionRegistry{dir: dir, catalog: catalog}
}

// Create persists a new submission in PENDING_VERIFICATION status. A missing
// id is assigned; SubmittedAt/UpdatedAt are stamped.
func (r *SubmissionRegistry) Create(sub models.Submission) (models.Submission, error) {
	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.Status = models.SubmissionPending
	sub.SubmittedAt = now
	sub.UpdatedAt = now
	sub.VerifiedAt = nil
	sub.MintResult = nil

	r.mu.Lock()
	err := utils.WriteJSONAtomic(r.recordPath(sub.ID), sub)
	r.mu.Unlock()
	if err != nil {
		return models.Submission{}, err
	}

	r.catalog.RecordSubmission()
	return sub, nil
}

// Get returns the submission or (nil, nil) when no record exists.
func (r *SubmissionRegistry) Get(id string) (*models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sub models.Submission
	err := utils.ReadJSON(r.recordPath(id), &sub)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SetStatus applies a verification outcome. VERIFIED stamps VerifiedAt and
// records the mint result; every write stamps UpdatedAt.
func (r *SubmissionRegistry) SetStatus(id string, status models.SubmissionStatus, mintResult *models.MintResult) (*models.Submission, error) {
	sub, err := r.Get(id)
	if err != nil || sub == nil {
		return sub, err
	}

	now := time.Now().UTC()
	sub.Status = status
	sub.UpdatedAt = now
	if status == models.SubmissionVerified {
		sub.VerifiedAt = &now
		sub.MintResult = mintResult
	}

	r.mu.Lock()
	err = utils.WriteJSONAtomic(r.recordPath(id), *sub)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if status == models.SubmissionVerified {
		r.catalog.RecordVerified()
	}
	return sub, nil
}

// Counts returns (total, verified) distinct records on disk, for catalog
// reconciliation.
func (r *SubmissionRegistry) Counts() (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, 0, err
	}
	var total, verified int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		total++
		var sub models.Submission
		if err := utils.ReadJSON(filepath.Join(r.dir, e.Name()), &sub); err != nil {
			continue
		}
		if sub.Status == models.SubmissionVerified {
			verified++
		}
	}
	return total, verified, nil
}

func (r *SubmissionRegistry) recordPath(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// CreateSubmission accepts a new submission referencing stored artifacts.
func (r *SubmissionRegistry) CreateSubmission(c *fiber.Ctx) error {
	var sub models.Submission
	if err := c.BodyParser(&sub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid submission body"})
	}
	if sub.QuestID == "" || sub.BotID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quest_id and bot_id are required"})
	}

	created, err := r.Create(sub)
	if err != nil {
		log.Printf("❌ [SUBMISSIONS] Create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create submission"})
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetSubmission serves GET /submissions/:id.
func (r *SubmissionRegistry) GetSubmission(c *fiber.Ctx) error {
	sub, err := r.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read submission"})
	}
	if sub == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "submission not found"})
	}
	return c.JSON(sub)
}

// UpdateSubmissionStatus applies a verification outcome from the economy
// engine: {status, mint_result?}.
func (r *SubmissionRegistry) UpdateSubmissionStatus(c *fiber.Ctx) error {
	var body struct {
		Status     models.SubmissionStatus `json:"status"`
		MintResult *models.MintResult      `json:"mint_result"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status body"})
	}
	if body.Status != models.SubmissionVerified && body.Status != models.SubmissionRejected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be VERIFIED or REJECTED"})
	}

	sub, err := r.SetStatus(c.Params("id"), body.Status, body.MintResult)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update submission"})
	}
	if sub == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "submission not found"})
	}
	return c.JSON(sub)
}
