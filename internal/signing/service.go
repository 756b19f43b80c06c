package signing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sealdesk/sealdesk-backend/pkg/pdf"
	"sealdesk/sealdesk-backend/pkg/security"
	"sealdesk/sealdesk-backend/pkg/storage"
	"sealdesk/sealdesk-backend/pkg/workflows"
)

type Service interface {
	UploadDocument(ctx context.Context, req UploadRequest) (*Document, error)
	DownloadDocument(ctx context.Context, id uuid.UUID) (*Document, []byte, error)
	ListRequests(ctx context.Context, documentID uuid.UUID) ([]SignatureRequest, error)

	SignOne(ctx context.Context, requestID, actorID uuid.UUID) (*SignatureRequest, bool, error)
	Reject(ctx context.Context, requestID, actorID uuid.UUID) (*SignatureRequest, error)
	SignBatch(ctx context.Context, documentID uuid.UUID, requestIDs []uuid.UUID, actorID uuid.UUID) (bool, error)
}

// Renderer burns marks into PDF bytes. Satisfied by *pdf.Stamper.
type Renderer interface {
	Stamp(src []byte, marks []pdf.Mark) ([]byte, error)
}

// Notifier delivers the "document sealed" message. Best effort; failures
// are logged, never propagated.
type Notifier interface {
	DocumentSealed(ctx context.Context, title, verifyURL string, recipients []string) error
}

type UploadRequest struct {
	Title      string
	Content    []byte
	UploadedBy uuid.UUID
}

type signingService struct {
	repo      Repository
	store     storage.BlobStore
	renderer  Renderer
	chain     *HashChain
	sealer    *security.Sealer
	lifecycle *workflows.StateMachine
	locks     *documentLocks
	notifier  Notifier
	baseURL   string
	logger    *zap.Logger
}

func NewService(repo Repository, store storage.BlobStore, renderer Renderer, sealer *security.Sealer, notifier Notifier, baseURL string, logger *zap.Logger) Service {
	return &signingService{
		repo:      repo,
		store:     store,
		renderer:  renderer,
		chain:     NewHashChain(repo),
		sealer:    sealer,
		lifecycle: workflows.NewRequestLifecycle(),
		locks:     newDocumentLocks(),
		notifier:  notifier,
		baseURL:   baseURL,
		logger:    logger,
	}
}

func (s *signingService) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrValidation)
	}
	docID := uuid.New()
	key := documentKey(docID)
	if err := s.store.Write(ctx, key, req.Content); err != nil {
		return nil, fmt.Errorf("write document bytes: %w", err)
	}

	doc := &Document{
		ID:         docID,
		Title:      req.Title,
		FilePath:   key,
		Checksum:   s.chain.Compute(req.Content),
		UploadedBy: req.UploadedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := s.chain.RecordOriginal(ctx, docID, doc.Checksum); err != nil {
		return nil, err
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", docID.String()),
		zap.String("checksum", doc.Checksum))
	return doc, nil
}

func (s *signingService) DownloadDocument(ctx context.Context, id uuid.UUID) (*Document, []byte, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	data, err := s.store.Read(ctx, doc.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read document bytes: %w", err)
	}
	return doc, data, nil
}

func (s *signingService) ListRequests(ctx context.Context, documentID uuid.UUID) ([]SignatureRequest, error) {
	return s.repo.ListRequests(ctx, documentID)
}

// SignOne applies one placement. The document lock is held from before the
// status re-read until sealing has finished, so two operations on the same
// document can never interleave their read-modify-write.
func (s *signingService) SignOne(ctx context.Context, requestID, actorID uuid.UUID) (*SignatureRequest, bool, error) {
	probe, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, false, fmt.Errorf("load request: %w", err)
	}
	if probe == nil {
		return nil, false, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}

	unlock := s.locks.Lock(probe.DocumentID)
	defer unlock()

	// Re-read under the lock; a concurrent signer may have won the race.
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, false, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, false, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if req.SignerID != actorID {
		return nil, false, fmt.Errorf("%w: request %s", ErrForbidden, requestID)
	}
	if !s.lifecycle.CanTransition(string(req.Status), string(StatusSigned)) {
		return nil, false, fmt.Errorf("%w: request %s is %s", ErrConflict, requestID, req.Status)
	}

	signer, err := s.repo.GetSigner(ctx, req.SignerID)
	if err != nil {
		return nil, false, fmt.Errorf("load signer: %w", err)
	}
	if signer == nil {
		return nil, false, fmt.Errorf("%w: signer %s", ErrNotFound, req.SignerID)
	}
	if err := req.validateForSigning(signer); err != nil {
		return nil, false, err
	}
	mark, err := s.buildMark(ctx, req, signer)
	if err != nil {
		return nil, false, err
	}

	doc, err := s.repo.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, false, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, false, fmt.Errorf("%w: document %s", ErrNotFound, req.DocumentID)
	}
	src, err := s.store.Read(ctx, doc.FilePath)
	if err != nil {
		return nil, false, fmt.Errorf("read document bytes: %w", err)
	}
	out, err := s.stamp(src, []pdf.Mark{mark})
	if err != nil {
		return nil, false, err
	}
	if err := s.persist(ctx, doc, out); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	if err := s.repo.MarkSigned(ctx, []uuid.UUID{req.ID}, now); err != nil {
		return nil, false, fmt.Errorf("mark request signed: %w", err)
	}
	req.Status = StatusSigned
	req.SignedAt = &now

	sealed, err := s.sealIfComplete(ctx, doc)
	if err != nil {
		return req, false, err
	}
	s.logger.Info("request signed",
		zap.String("request_id", req.ID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.Bool("sealed", sealed))
	return req, sealed, nil
}

func (s *signingService) Reject(ctx context.Context, requestID, actorID uuid.UUID) (*SignatureRequest, error) {
	probe, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if probe == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}

	unlock := s.locks.Lock(probe.DocumentID)
	defer unlock()

	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if req.SignerID != actorID {
		return nil, fmt.Errorf("%w: request %s", ErrForbidden, requestID)
	}
	if !s.lifecycle.CanTransition(string(req.Status), string(StatusRejected)) {
		return nil, fmt.Errorf("%w: request %s is %s", ErrConflict, requestID, req.Status)
	}
	if err := s.repo.MarkRejected(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("mark request rejected: %w", err)
	}
	req.Status = StatusRejected
	s.logger.Info("request rejected",
		zap.String("request_id", req.ID.String()),
		zap.String("document_id", req.DocumentID.String()))
	return req, nil
}

// sealIfComplete runs under the document lock of the triggering sign
// operation. When no PENDING request remains it embeds the verification QR,
// rehashes and records the signed hash with its MAC.
func (s *signingService) sealIfComplete(ctx context.Context, doc *Document) (bool, error) {
	pending, err := s.repo.CountPending(ctx, doc.ID)
	if err != nil {
		return false, fmt.Errorf("count pending requests: %w", err)
	}
	if pending > 0 {
		return false, nil
	}

	hashRow, err := s.repo.GetDocumentHash(ctx, doc.ID)
	if err != nil {
		return false, fmt.Errorf("load document hash: %w", err)
	}
	if hashRow.Sealed() {
		return false, nil
	}
	if hashRow == nil {
		// Documents uploaded before the hash chain existed have no row yet;
		// record the current checksum as their origin.
		if err := s.chain.RecordOriginal(ctx, doc.ID, doc.Checksum); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return false, err
		}
	}

	verifyURL := fmt.Sprintf("%s/validate?id=%s&checksum=%s", s.baseURL, doc.ID, doc.Checksum[:8])
	src, err := s.store.Read(ctx, doc.FilePath)
	if err != nil {
		return false, fmt.Errorf("read document bytes: %w", err)
	}
	out, err := s.stamp(src, []pdf.Mark{{Type: pdf.MarkQR, Text: verifyURL}})
	if err != nil {
		return false, err
	}
	if err := s.persist(ctx, doc, out); err != nil {
		return false, err
	}

	mac := s.sealer.Sign(doc.Checksum)
	if err := s.chain.Seal(ctx, doc.ID, doc.Checksum, mac); err != nil {
		return false, err
	}
	s.logger.Info("document sealed",
		zap.String("document_id", doc.ID.String()),
		zap.String("signed_hash", doc.Checksum))
	s.notifySealed(ctx, doc, verifyURL)
	return true, nil
}

func (s *signingService) notifySealed(ctx context.Context, doc *Document, verifyURL string) {
	if s.notifier == nil {
		return
	}
	sigs, err := s.repo.ListCompletedSignatures(ctx, doc.ID)
	if err != nil {
		s.logger.Warn("list signatures for notification", zap.Error(err))
		return
	}
	recipients := make([]string, 0, len(sigs))
	seen := make(map[string]bool, len(sigs))
	for _, sig := range sigs {
		if sig.Email != "" && !seen[sig.Email] {
			seen[sig.Email] = true
			recipients = append(recipients, sig.Email)
		}
	}
	if len(recipients) == 0 {
		return
	}
	if err := s.notifier.DocumentSealed(ctx, doc.Title, verifyURL, recipients); err != nil {
		s.logger.Warn("sealed notification failed", zap.Error(err))
	}
}

func (s *signingService) buildMark(ctx context.Context, r *SignatureRequest, signer *Signer) (pdf.Mark, error) {
	m := pdf.Mark{
		Type:   r.markType(),
		Page:   r.Page,
		X:      r.X,
		Y:      r.Y,
		Width:  r.Width,
		Height: r.Height,
		Text:   r.Text,
	}
	if r.Kind == KindSignature || r.Kind == KindInitial {
		img, err := s.store.Read(ctx, *signer.ImagePath)
		if err != nil {
			return pdf.Mark{}, fmt.Errorf("%w: signer %s: %v", ErrMissingAsset, signer.ID, err)
		}
		m.Image = img
	}
	return m, nil
}

func (s *signingService) stamp(src []byte, marks []pdf.Mark) ([]byte, error) {
	out, err := s.renderer.Stamp(src, marks)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, pdf.ErrMissingAsset):
		return nil, fmt.Errorf("%w: %v", ErrMissingAsset, err)
	case errors.Is(err, pdf.ErrInvalidPage), errors.Is(err, pdf.ErrInvalidInput):
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	default:
		return nil, err
	}
}

// persist writes the mutated bytes to a fresh key and moves the document
// pointer, then records the new checksum. Readers of the old key are never
// exposed to a half-written file.
func (s *signingService) persist(ctx context.Context, doc *Document, data []byte) error {
	key := documentKey(doc.ID)
	if err := s.store.Write(ctx, key, data); err != nil {
		return fmt.Errorf("write document bytes: %w", err)
	}
	sum := s.chain.Compute(data)
	if err := s.repo.UpdateDocumentFile(ctx, doc.ID, key, sum); err != nil {
		return fmt.Errorf("update document pointer: %w", err)
	}
	doc.FilePath = key
	doc.Checksum = sum
	return nil
}

func documentKey(docID uuid.UUID) string {
	return fmt.Sprintf("documents/%s/%s.pdf", docID, uuid.NewString())
}
