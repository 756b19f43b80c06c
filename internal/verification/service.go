package verification

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sealdesk/sealdesk-backend/internal/signing"
	"sealdesk/sealdesk-backend/pkg/security"
)

// MatchTier names which fingerprint the input matched.
type MatchTier string

const (
	TierSigned   MatchTier = "signed"
	TierOriginal MatchTier = "original"
	TierLegacy   MatchTier = "legacy" // documents.checksum, pre-hash-chain rows
)

type DocumentInfo struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type HashInfo struct {
	Algorithm        string  `json:"algorithm"`
	OriginalHash     string  `json:"original_hash"`
	SignedHash       *string `json:"signed_hash,omitempty"`
	IsSignatureValid bool    `json:"is_signature_valid"`
}

// Report is always data, never an error: a failed verification is a
// legitimate outcome, not a fault.
type Report struct {
	Found      bool                         `json:"found"`
	MatchTier  MatchTier                    `json:"match_tier,omitempty"`
	Document   *DocumentInfo                `json:"document,omitempty"`
	Signatures []signing.CompletedSignature `json:"signatures,omitempty"`
	HashInfo   *HashInfo                    `json:"hash_info,omitempty"`
}

type Service interface {
	VerifyChecksum(ctx context.Context, token string) (*Report, error)
	VerifyUpload(ctx context.Context, content []byte) (*Report, error)
}

type verificationService struct {
	repo   signing.Repository
	sealer *security.Sealer
	logger *zap.Logger
}

func NewService(repo signing.Repository, sealer *security.Sealer, logger *zap.Logger) Service {
	return &verificationService{repo: repo, sealer: sealer, logger: logger}
}

var fullHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// VerifyChecksum resolves a full 64-char hash or a short prefix of up to 8
// characters against the chain: signed hash first, then original, then the
// legacy document checksum. A malformed token is simply not found.
func (s *verificationService) VerifyChecksum(ctx context.Context, token string) (*Report, error) {
	token = strings.ToLower(strings.TrimSpace(token))

	switch {
	case fullHashPattern.MatchString(token):
		return s.lookup(ctx, token,
			s.repo.GetHashBySignedHash,
			s.repo.GetHashByOriginalHash,
			s.repo.GetDocumentByChecksum)
	case token != "" && len(token) <= 8:
		return s.lookup(ctx, token,
			s.repo.GetHashBySignedPrefix,
			s.repo.GetHashByOriginalPrefix,
			s.repo.GetDocumentByChecksumPrefix)
	default:
		return &Report{Found: false}, nil
	}
}

// VerifyUpload lets a caller who holds the raw file prove authenticity
// without knowing any identifier.
func (s *verificationService) VerifyUpload(ctx context.Context, content []byte) (*Report, error) {
	return s.VerifyChecksum(ctx, security.Checksum(content))
}

type hashLookup func(ctx context.Context, token string) (*signing.DocumentHash, error)
type docLookup func(ctx context.Context, token string) (*signing.Document, error)

func (s *verificationService) lookup(ctx context.Context, token string, bySigned, byOriginal hashLookup, byChecksum docLookup) (*Report, error) {
	if row, err := bySigned(ctx, token); err != nil {
		return nil, fmt.Errorf("signed hash lookup: %w", err)
	} else if row != nil {
		return s.buildReport(ctx, TierSigned, row.DocumentID, row)
	}

	if row, err := byOriginal(ctx, token); err != nil {
		return nil, fmt.Errorf("original hash lookup: %w", err)
	} else if row != nil {
		return s.buildReport(ctx, TierOriginal, row.DocumentID, row)
	}

	doc, err := byChecksum(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("legacy checksum lookup: %w", err)
	}
	if doc == nil {
		return &Report{Found: false}, nil
	}
	// Pre-hash-chain documents may still have gained a row since upload.
	row, err := s.repo.GetDocumentHash(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("load document hash: %w", err)
	}
	return s.buildReport(ctx, TierLegacy, doc.ID, row)
}

func (s *verificationService) buildReport(ctx context.Context, tier MatchTier, documentID uuid.UUID, row *signing.DocumentHash) (*Report, error) {
	report := &Report{Found: true, MatchTier: tier}

	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc != nil {
		report.Document = &DocumentInfo{
			ID:         doc.ID,
			Title:      doc.Title,
			UploadedBy: doc.UploadedBy,
			UploadedAt: doc.CreatedAt,
		}
	}

	sigs, err := s.repo.ListCompletedSignatures(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	report.Signatures = sigs

	if row != nil {
		info := &HashInfo{
			Algorithm:    row.Algorithm,
			OriginalHash: row.OriginalHash,
			SignedHash:   row.SignedHash,
		}
		// A mismatched MAC is reported as data so the caller can tell "these
		// bytes belong to a known document" apart from "its seal is intact".
		if row.Sealed() {
			info.IsSignatureValid = s.sealer.Verify(*row.SignedHash, *row.SignatureData)
		}
		report.HashInfo = info
	}

	s.logger.Debug("verification resolved",
		zap.String("document_id", documentID.String()),
		zap.String("tier", string(tier)))
	return report, nil
}
