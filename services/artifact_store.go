package services

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"world-sync-system/models"
	"world-sync-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
)

// ArtifactStore persists immutable, content-addressed blobs as one JSON file
// per artifact, keyed by an id derived from the content hash. Storing
// byte-identical content yields the same id; the store does not check for a
// pre-existing record before writing, so the catalog counts every store
// call (the reconciliation pass trues this up against distinct records).
type ArtifactStore struct {
	mu      sync.RWMutex
	dir     string
	catalog *Catalog
}

func NewArtifactStore(dir string, catalog *Catalog) *ArtifactStore {
	return &ArtifactStore{dir: dir, catalog: catalog}
}

// DeriveArtifactID returns the id for content: the first 16 hex digits of
// its sha256 hash.
func DeriveArtifactID(hash string) string {
	return hash[:16]
}

// Store writes content under its derived id and records it in the catalog.
// When R2 mirroring is configured the blob is also pushed to the bucket in
// the background; mirror failures never fail the store call.
func (s *ArtifactStore) Store(content []byte, meta models.ArtifactMetadata) (models.StoreResult, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	id := DeriveArtifactID(hash)

	artifact := models.Artifact{
		ID:        id,
		Hash:      hash,
		Size:      int64(len(content)),
		CreatedAt: time.Now().UTC(),
		Metadata:  meta,
		Slug:      slug.Make(meta.Name),
		Content:   content,
	}

	s.mu.Lock()
	err := utils.WriteJSONAtomic(s.recordPath(id), artifact)
	s.mu.Unlock()
	if err != nil {
		return models.StoreResult{}, err
	}

	s.catalog.RecordArtifact()

	if utils.MirrorEnabled() {
		go func() {
			key := "artifacts/" + id + "/" + artifact.Slug
			if _, err := utils.MirrorArtifactToR2(key, content, meta.Type); err != nil {
				log.Printf("⚠️  [ARTIFACTS] R2 mirror failed for %s: %v", id, err)
			}
		}()
	}

	return models.StoreResult{ID: id, Hash: hash, Size: artifact.Size}, nil
}

// Get returns the artifact or (nil, nil) when no record exists.
func (s *ArtifactStore) Get(id string) (*models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var artifact models.Artifact
	err := utils.ReadJSON(s.recordPath(id), &artifact)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Verify recomputes the hash over stored content and compares it with the
// recorded one. A mismatch is reported in the result, never returned as an
// error — it flags on-disk tampering or corruption without blocking reads.
func (s *ArtifactStore) Verify(id string) (models.VerifyResult, error) {
	artifact, err := s.Get(id)
	if err != nil {
		return models.VerifyResult{}, err
	}
	if artifact == nil {
		return models.VerifyResult{}, os.ErrNotExist
	}

	sum := sha256.Sum256(artifact.Content)
	computed := hex.EncodeToString(sum[:])
	return models.VerifyResult{
		Valid:        computed == artifact.Hash,
		StoredHash:   artifact.Hash,
		ComputedHash: computed,
	}, nil
}

// Count returns the number of distinct artifact records on disk.
func (s *ArtifactStore) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n, nil
}

func (s *ArtifactStore) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// StoreArtifact accepts a new blob: {content (base64), metadata{...}}.
func (s *ArtifactStore) StoreArtifact(c *fiber.Ctx) error {
	var body struct {
		Content  []byte                  `json:"content"`
		Metadata models.ArtifactMetadata `json:"metadata"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid artifact body"})
	}
	if len(body.Content) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}

	result, err := s.Store(body.Content, body.Metadata)
	if err != nil {
		log.Printf("❌ [ARTIFACTS] Store failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store artifact"})
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetArtifact serves GET /artifacts/:id.
func (s *ArtifactStore) GetArtifact(c *fiber.Ctx) error {
	artifact, err := s.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read artifact"})
	}
	if artifact == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "artifact not found"})
	}
	return c.JSON(artifact)
}

// VerifyArtifact serves GET /artifacts/:id/verify.
func (s *ArtifactStore) VerifyArtifact(c *fiber.Ctx) error {
	result, err := s.Verify(c.Params("id"))
	if os.IsNotExist(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "artifact not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to verify artifact"})
	}
	return c.JSON(result)
}
