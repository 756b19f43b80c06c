package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sealdesk/sealdesk-backend/pkg/pdf"
)

// SignBatch signs a set of requests on one document as a single unit: all
// preconditions are checked over the entire set before any mutation, every
// mark lands on one in-memory copy of the bytes, and there is exactly one
// store write, one rehash and one shared signedAt. Any precondition failure
// leaves every request untouched.
func (s *signingService) SignBatch(ctx context.Context, documentID uuid.UUID, requestIDs []uuid.UUID, actorID uuid.UUID) (bool, error) {
	if len(requestIDs) == 0 {
		return false, fmt.Errorf("%w: empty request set", ErrValidation)
	}
	unique := make(map[uuid.UUID]bool, len(requestIDs))
	for _, id := range requestIDs {
		unique[id] = true
	}
	if len(unique) != len(requestIDs) {
		return false, fmt.Errorf("%w: duplicate request ids", ErrValidation)
	}

	unlock := s.locks.Lock(documentID)
	defer unlock()

	reqs, err := s.repo.GetRequests(ctx, requestIDs)
	if err != nil {
		return false, fmt.Errorf("load requests: %w", err)
	}
	if len(reqs) != len(requestIDs) {
		return false, fmt.Errorf("%w: unknown request id in set", ErrValidation)
	}
	signer, err := s.repo.GetSigner(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("load signer: %w", err)
	}
	if signer == nil {
		return false, fmt.Errorf("%w: signer %s", ErrValidation, actorID)
	}

	for i := range reqs {
		r := &reqs[i]
		switch {
		case r.DocumentID != documentID:
			return false, fmt.Errorf("%w: request %s belongs to another document", ErrValidation, r.ID)
		case r.SignerID != actorID:
			return false, fmt.Errorf("%w: request %s belongs to another signer", ErrValidation, r.ID)
		case !s.lifecycle.CanTransition(string(r.Status), string(StatusSigned)):
			return false, fmt.Errorf("%w: request %s is %s", ErrValidation, r.ID, r.Status)
		}
		if err := r.validateForSigning(signer); err != nil {
			return false, err
		}
	}

	marks := make([]pdf.Mark, 0, len(reqs))
	for i := range reqs {
		mark, err := s.buildMark(ctx, &reqs[i], signer)
		if err != nil {
			return false, err
		}
		marks = append(marks, mark)
	}

	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return false, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	src, err := s.store.Read(ctx, doc.FilePath)
	if err != nil {
		return false, fmt.Errorf("read document bytes: %w", err)
	}
	out, err := s.stamp(src, marks)
	if err != nil {
		return false, err
	}
	if err := s.persist(ctx, doc, out); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	if err := s.repo.MarkSigned(ctx, requestIDs, now); err != nil {
		return false, fmt.Errorf("mark requests signed: %w", err)
	}

	sealed, err := s.sealIfComplete(ctx, doc)
	if err != nil {
		return false, err
	}
	s.logger.Info("batch signed",
		zap.String("document_id", documentID.String()),
		zap.Int("requests", len(reqs)),
		zap.Bool("sealed", sealed))
	return sealed, nil
}
