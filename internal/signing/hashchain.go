package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sealdesk/sealdesk-backend/pkg/security"
)

// HashChain owns every checksum computed in the system and the
// original/signed hash pair recorded per document. No other component
// computes a digest directly.
type HashChain struct {
	repo Repository
}

func NewHashChain(repo Repository) *HashChain {
	return &HashChain{repo: repo}
}

// Compute returns the lower-case hex SHA-256 of b.
func (c *HashChain) Compute(b []byte) string {
	return security.Checksum(b)
}

// RecordOriginal creates the document's provenance row exactly once.
func (c *HashChain) RecordOriginal(ctx context.Context, documentID uuid.UUID, hash string) error {
	existing, err := c.repo.GetDocumentHash(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document hash: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: document %s already has a hash record", ErrAlreadyExists, documentID)
	}
	return c.repo.CreateDocumentHash(ctx, &DocumentHash{
		DocumentID:   documentID,
		OriginalHash: hash,
		Algorithm:    security.HashAlgorithm,
		CreatedAt:    time.Now().UTC(),
	})
}

// Seal records the signed hash and its MAC exactly once. The second
// caller loses to the guarded update and gets ErrAlreadyExists.
func (c *HashChain) Seal(ctx context.Context, documentID uuid.UUID, signedHash, mac string) error {
	ok, err := c.repo.SealDocumentHash(ctx, documentID, signedHash, mac, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seal document hash: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: document %s is already sealed", ErrAlreadyExists, documentID)
	}
	return nil
}
