package signing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"sealdesk/sealdesk-backend/pkg/pdf"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusSigned   RequestStatus = "SIGNED"
	StatusRejected RequestStatus = "REJECTED"
)

// MarkKind mirrors pdf.MarkType for the request variants a signer can be
// asked to place. The QR mark is reserved for sealing and never appears on
// a request.
type MarkKind string

const (
	KindSignature MarkKind = "signature"
	KindInitial   MarkKind = "initial"
	KindText      MarkKind = "text"
	KindDate      MarkKind = "date"
)

type Document struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	FilePath   string    `json:"-" db:"file_path"`
	Checksum   string    `json:"checksum" db:"checksum"`
	UploadedBy uuid.UUID `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DocumentHash is the immutable provenance record for one document.
// SignedHash and SignatureData are set together exactly once at sealing.
type DocumentHash struct {
	DocumentID    uuid.UUID  `json:"document_id" db:"document_id"`
	OriginalHash  string     `json:"original_hash" db:"original_hash"`
	SignedHash    *string    `json:"signed_hash,omitempty" db:"signed_hash"`
	SignatureData *string    `json:"-" db:"signature_data"`
	Algorithm     string     `json:"algorithm" db:"algorithm"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	SealedAt      *time.Time `json:"sealed_at,omitempty" db:"sealed_at"`
}

func (h *DocumentHash) Sealed() bool {
	return h != nil && h.SignedHash != nil && h.SignatureData != nil
}

type SignatureRequest struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	DocumentID uuid.UUID     `json:"document_id" db:"document_id"`
	SignerID   uuid.UUID     `json:"signer_id" db:"signer_id"`
	Page       int           `json:"page" db:"page"`
	X          float64       `json:"x" db:"x"`
	Y          float64       `json:"y" db:"y"`
	Width      float64       `json:"width" db:"width"`
	Height     float64       `json:"height" db:"height"`
	Kind       MarkKind      `json:"kind" db:"kind"`
	Text       string        `json:"text" db:"text"`
	Status     RequestStatus `json:"status" db:"status"`
	SignedAt   *time.Time    `json:"signed_at,omitempty" db:"signed_at"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// Signer is the collaborator identity a request points at. The stored
// image feeds signature and initial marks.
type Signer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	ImagePath *string   `json:"-" db:"signature_image_path"`
}

func (s *Signer) HasImage() bool {
	return s != nil && s.ImagePath != nil && *s.ImagePath != ""
}

// CompletedSignature is one row of the signer history surfaced by
// verification.
type CompletedSignature struct {
	SignerID   uuid.UUID `json:"signer_id" db:"signer_id"`
	SignerName string    `json:"signer_name" db:"signer_name"`
	Email      string    `json:"-" db:"email"`
	Kind       MarkKind  `json:"kind" db:"kind"`
	SignedAt   time.Time `json:"signed_at" db:"signed_at"`
}

// validateForSigning enforces the per-variant requirements before any
// rendering happens.
func (r *SignatureRequest) validateForSigning(signer *Signer) error {
	if r.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrValidation, r.Page)
	}
	switch r.Kind {
	case KindSignature, KindInitial:
		if !signer.HasImage() {
			return fmt.Errorf("%w: signer %s", ErrMissingAsset, r.SignerID)
		}
	case KindText, KindDate:
		// text falls back to a default at render time; date needs nothing
	default:
		return fmt.Errorf("%w: unknown mark kind %q", ErrValidation, r.Kind)
	}
	return nil
}

func (r *SignatureRequest) markType() pdf.MarkType {
	switch r.Kind {
	case KindInitial:
		return pdf.MarkInitial
	case KindText:
		return pdf.MarkText
	case KindDate:
		return pdf.MarkDate
	default:
		return pdf.MarkSignature
	}
}
