package signing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	UpdateDocumentFile(ctx context.Context, id uuid.UUID, filePath, checksum string) error
	GetDocumentByChecksum(ctx context.Context, checksum string) (*Document, error)
	GetDocumentByChecksumPrefix(ctx context.Context, prefix string) (*Document, error)

	GetRequest(ctx context.Context, id uuid.UUID) (*SignatureRequest, error)
	GetRequests(ctx context.Context, ids []uuid.UUID) ([]SignatureRequest, error)
	ListRequests(ctx context.Context, documentID uuid.UUID) ([]SignatureRequest, error)
	CountPending(ctx context.Context, documentID uuid.UUID) (int, error)
	MarkSigned(ctx context.Context, ids []uuid.UUID, signedAt time.Time) error
	MarkRejected(ctx context.Context, id uuid.UUID) error
	ListCompletedSignatures(ctx context.Context, documentID uuid.UUID) ([]CompletedSignature, error)

	GetSigner(ctx context.Context, id uuid.UUID) (*Signer, error)

	CreateDocumentHash(ctx context.Context, h *DocumentHash) error
	GetDocumentHash(ctx context.Context, documentID uuid.UUID) (*DocumentHash, error)
	SealDocumentHash(ctx context.Context, documentID uuid.UUID, signedHash, signatureData string, sealedAt time.Time) (bool, error)
	GetHashBySignedHash(ctx context.Context, hash string) (*DocumentHash, error)
	GetHashByOriginalHash(ctx context.Context, hash string) (*DocumentHash, error)
	GetHashBySignedPrefix(ctx context.Context, prefix string) (*DocumentHash, error)
	GetHashByOriginalPrefix(ctx context.Context, prefix string) (*DocumentHash, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, title, file_path, checksum, uploaded_by, created_at
		) VALUES (
			:id, :title, :file_path, :checksum, :uploaded_by, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

func (r *postgresRepository) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &doc, err
}

func (r *postgresRepository) UpdateDocumentFile(ctx context.Context, id uuid.UUID, filePath, checksum string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE documents SET file_path = $2, checksum = $3 WHERE id = $1",
		id, filePath, checksum)
	return err
}

func (r *postgresRepository) GetDocumentByChecksum(ctx context.Context, checksum string) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE lower(checksum) = lower($1)", checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &doc, err
}

func (r *postgresRepository) GetDocumentByChecksumPrefix(ctx context.Context, prefix string) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE lower(checksum) LIKE lower($1) || '%' ORDER BY created_at LIMIT 1", prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &doc, err
}

func (r *postgresRepository) GetRequest(ctx context.Context, id uuid.UUID) (*SignatureRequest, error) {
	var req SignatureRequest
	err := r.db.GetContext(ctx, &req, "SELECT * FROM signature_requests WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &req, err
}

func (r *postgresRepository) GetRequests(ctx context.Context, ids []uuid.UUID) ([]SignatureRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM signature_requests WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var reqs []SignatureRequest
	err = r.db.SelectContext(ctx, &reqs, r.db.Rebind(query), args...)
	return reqs, err
}

func (r *postgresRepository) ListRequests(ctx context.Context, documentID uuid.UUID) ([]SignatureRequest, error) {
	var reqs []SignatureRequest
	err := r.db.SelectContext(ctx, &reqs,
		"SELECT * FROM signature_requests WHERE document_id = $1 ORDER BY created_at", documentID)
	return reqs, err
}

func (r *postgresRepository) CountPending(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM signature_requests WHERE document_id = $1 AND status = $2",
		documentID, StatusPending)
	return count, err
}

func (r *postgresRepository) MarkSigned(ctx context.Context, ids []uuid.UUID, signedAt time.Time) error {
	query, args, err := sqlx.In(
		"UPDATE signature_requests SET status = ?, signed_at = ? WHERE id IN (?)",
		StatusSigned, signedAt, ids)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}

func (r *postgresRepository) MarkRejected(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE signature_requests SET status = $2 WHERE id = $1", id, StatusRejected)
	return err
}

func (r *postgresRepository) ListCompletedSignatures(ctx context.Context, documentID uuid.UUID) ([]CompletedSignature, error) {
	var sigs []CompletedSignature
	query := `
		SELECT r.signer_id, s.name AS signer_name, s.email, r.kind, r.signed_at
		FROM signature_requests r
		JOIN signers s ON s.id = r.signer_id
		WHERE r.document_id = $1 AND r.status = $2
		ORDER BY r.signed_at`
	err := r.db.SelectContext(ctx, &sigs, query, documentID, StatusSigned)
	return sigs, err
}

func (r *postgresRepository) GetSigner(ctx context.Context, id uuid.UUID) (*Signer, error) {
	var signer Signer
	err := r.db.GetContext(ctx, &signer, "SELECT * FROM signers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &signer, err
}

func (r *postgresRepository) CreateDocumentHash(ctx context.Context, h *DocumentHash) error {
	query := `
		INSERT INTO document_hashes (
			document_id, original_hash, signed_hash, signature_data, algorithm, created_at
		) VALUES (
			:document_id, :original_hash, :signed_hash, :signature_data, :algorithm, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, h)
	return err
}

func (r *postgresRepository) GetDocumentHash(ctx context.Context, documentID uuid.UUID) (*DocumentHash, error) {
	var h DocumentHash
	err := r.db.GetContext(ctx, &h, "SELECT * FROM document_hashes WHERE document_id = $1", documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &h, err
}

// SealDocumentHash is guarded so sealing stays one-way: the update only
// lands while signed_hash is still null. Returns false when the row was
// already sealed or absent.
func (r *postgresRepository) SealDocumentHash(ctx context.Context, documentID uuid.UUID, signedHash, signatureData string, sealedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE document_hashes
		SET signed_hash = $2, signature_data = $3, sealed_at = $4
		WHERE document_id = $1 AND signed_hash IS NULL`,
		documentID, signedHash, signatureData, sealedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) GetHashBySignedHash(ctx context.Context, hash string) (*DocumentHash, error) {
	var h DocumentHash
	err := r.db.GetContext(ctx, &h,
		"SELECT * FROM document_hashes WHERE lower(signed_hash) = lower($1)", hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &h, err
}

func (r *postgresRepository) GetHashByOriginalHash(ctx context.Context, hash string) (*DocumentHash, error) {
	var h DocumentHash
	err := r.db.GetContext(ctx, &h,
		"SELECT * FROM document_hashes WHERE lower(original_hash) = lower($1)", hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &h, err
}

func (r *postgresRepository) GetHashBySignedPrefix(ctx context.Context, prefix string) (*DocumentHash, error) {
	var h DocumentHash
	err := r.db.GetContext(ctx, &h,
		"SELECT * FROM document_hashes WHERE lower(signed_hash) LIKE lower($1) || '%' ORDER BY created_at LIMIT 1", prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &h, err
}

func (r *postgresRepository) GetHashByOriginalPrefix(ctx context.Context, prefix string) (*DocumentHash, error) {
	var h DocumentHash
	err := r.db.GetContext(ctx, &h,
		"SELECT * FROM document_hashes WHERE lower(original_hash) LIKE lower($1) || '%' ORDER BY created_at LIMIT 1", prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &h, err
}
