package verification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sealdesk/sealdesk-backend/internal/signing"
	"sealdesk/sealdesk-backend/pkg/security"
)

// MockRepository is a mock implementation of the signing.Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateDocument(ctx context.Context, doc *signing.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) GetDocument(ctx context.Context, id uuid.UUID) (*signing.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.Document), args.Error(1)
}

func (m *MockRepository) UpdateDocumentFile(ctx context.Context, id uuid.UUID, filePath, checksum string) error {
	args := m.Called(ctx, id, filePath, checksum)
	return args.Error(0)
}

func (m *MockRepository) GetDocumentByChecksum(ctx context.Context, checksum string) (*signing.Document, error) {
	args := m.Called(ctx, checksum)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.Document), args.Error(1)
}

func (m *MockRepository) GetDocumentByChecksumPrefix(ctx context.Context, prefix string) (*signing.Document, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.Document), args.Error(1)
}

func (m *MockRepository) GetRequest(ctx context.Context, id uuid.UUID) (*signing.SignatureRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.SignatureRequest), args.Error(1)
}

func (m *MockRepository) GetRequests(ctx context.Context, ids []uuid.UUID) ([]signing.SignatureRequest, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]signing.SignatureRequest), args.Error(1)
}

func (m *MockRepository) ListRequests(ctx context.Context, documentID uuid.UUID) ([]signing.SignatureRequest, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]signing.SignatureRequest), args.Error(1)
}

func (m *MockRepository) CountPending(ctx context.Context, documentID uuid.UUID) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) MarkSigned(ctx context.Context, ids []uuid.UUID, signedAt time.Time) error {
	args := m.Called(ctx, ids, signedAt)
	return args.Error(0)
}

func (m *MockRepository) MarkRejected(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListCompletedSignatures(ctx context.Context, documentID uuid.UUID) ([]signing.CompletedSignature, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]signing.CompletedSignature), args.Error(1)
}

func (m *MockRepository) GetSigner(ctx context.Context, id uuid.UUID) (*signing.Signer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.Signer), args.Error(1)
}

func (m *MockRepository) CreateDocumentHash(ctx context.Context, h *signing.DocumentHash) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockRepository) GetDocumentHash(ctx context.Context, documentID uuid.UUID) (*signing.DocumentHash, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.DocumentHash), args.Error(1)
}

func (m *MockRepository) SealDocumentHash(ctx context.Context, documentID uuid.UUID, signedHash, signatureData string, sealedAt time.Time) (bool, error) {
	args := m.Called(ctx, documentID, signedHash, signatureData, sealedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) GetHashBySignedHash(ctx context.Context, hash string) (*signing.DocumentHash, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.DocumentHash), args.Error(1)
}

func (m *MockRepository) GetHashByOriginalHash(ctx context.Context, hash string) (*signing.DocumentHash, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.DocumentHash), args.Error(1)
}

func (m *MockRepository) GetHashBySignedPrefix(ctx context.Context, prefix string) (*signing.DocumentHash, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.DocumentHash), args.Error(1)
}

func (m *MockRepository) GetHashByOriginalPrefix(ctx context.Context, prefix string) (*signing.DocumentHash, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signing.DocumentHash), args.Error(1)
}

func newTestSealer(t *testing.T) *security.Sealer {
	t.Helper()
	sealer, err := security.NewSealer("verify-secret")
	require.NoError(t, err)
	return sealer
}

func sealedRow(sealer *security.Sealer, docID uuid.UUID, originalHash, signedHash string) *signing.DocumentHash {
	mac := sealer.Sign(signedHash)
	sealedAt := time.Now()
	return &signing.DocumentHash{
		DocumentID:    docID,
		OriginalHash:  originalHash,
		SignedHash:    &signedHash,
		SignatureData: &mac,
		Algorithm:     security.HashAlgorithm,
		SealedAt:      &sealedAt,
	}
}

func testDocument(id uuid.UUID) *signing.Document {
	return &signing.Document{
		ID:         id,
		Title:      "contract.pdf",
		Checksum:   security.Checksum([]byte("current bytes")),
		UploadedBy: uuid.New(),
		CreatedAt:  time.Now(),
	}
}

func TestVerifyChecksumSignedTier(t *testing.T) {
	mockRepo := new(MockRepository)
	sealer := newTestSealer(t)
	service := NewService(mockRepo, sealer, zap.NewNop())

	ctx := context.Background()
	docID := uuid.New()
	originalHash := security.Checksum([]byte("original"))
	signedHash := security.Checksum([]byte("signed"))
	row := sealedRow(sealer, docID, originalHash, signedHash)

	mockRepo.On("GetHashBySignedHash", ctx, signedHash).Return(row, nil)
	mockRepo.On("GetDocument", ctx, docID).Return(testDocument(docID), nil)
	mockRepo.On("ListCompletedSignatures", ctx, docID).Return([]signing.CompletedSignature{
		{SignerID: uuid.New(), SignerName: "Ada", Kind: signing.KindSignature, SignedAt: time.Now()},
	}, nil)

	report, err := service.VerifyChecksum(ctx, signedHash)

	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, TierSigned, report.MatchTier)
	require.NotNil(t, report.Document)
	assert.Equal(t, "contract.pdf", report.Document.Title)
	assert.Len(t, report.Signatures, 1)
	require.NotNil(t, report.HashInfo)
	assert.True(t, report.HashInfo.IsSignatureValid)
	assert.Equal(t, originalHash, report.HashInfo.OriginalHash)
}

func TestVerifyChecksumFallsBackToOriginalTier(t *testing.T) {
	mockRepo := new(MockRepository)
	sealer := newTestSealer(t)
	service := NewService(mockRepo, sealer, zap.NewNop())

	ctx := context.Background()
	docID := uuid.New()
	originalHash := security.Checksum([]byte("original"))
	row := &signing.DocumentHash{DocumentID: docID, OriginalHash: originalHash, Algorithm: security.HashAlgorithm}

	mockRepo.On("GetHashBySignedHash", ctx, originalHash).Return(nil, nil)
	mockRepo.On("GetHashByOriginalHash", ctx, originalHash).Return(row, nil)
	mockRepo.On("GetDocument", ctx, docID).Return(testDocument(docID), nil)
	mockRepo.On("ListCompletedSignatures", ctx, docID).Return([]signing.CompletedSignature{}, nil)

	report, err := service.VerifyChecksum(ctx, originalHash)

	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, TierOriginal, report.MatchTier)
	require.NotNil(t, report.HashInfo)
	// Not sealed yet: there is no signature to be valid.
	assert.False(t, report.HashInfo.IsSignatureValid)
	assert.Nil(t, report.HashInfo.SignedHash)
}

func TestVerifyChecksumLegacyTier(t *testing.T) {
	mockRepo := new(MockRepository)
	sealer := newTestSealer(t)
	service := NewService(mockRepo, sealer, zap.NewNop())

	ctx := context.Background()
	docID := uuid.New()
	doc := testDocument(docID)
	sum := doc.Checksum

	mockRepo.On("GetHashBySignedHash", ctx, sum).Return(nil, nil)
	mockRepo.On("GetHashByOriginalHash", ctx, sum).Return(nil, nil)
	mockRepo.On("GetDocumentByChecksum", ctx, sum).Return(doc, nil)
	mockRepo.On("GetDocumentHash", ctx, docID).Return(nil, nil)
	mockRepo.On("GetDocument", ctx, docID).Return(doc, nil)
	mockRepo.On("ListCompletedSignatures", ctx, docID).Return([]signing.CompletedSignature{}, nil)

	report, err := service.VerifyChecksum(ctx, sum)

	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, TierLegacy, report.MatchTier)
	assert.Nil(t, report.HashInfo, "no hash chain row for a legacy match")
}

func TestVerifyChecksumPrefixUsesPrefixLookups(t *testing.T) {
	mockRepo := new(MockRepository)
	sealer := newTestSealer(t)
	service := NewService(mockRepo, sealer, zap.NewNop())

	ctx := context.Background()
	docID := uuid.New()
	signedHash := security.Checksum([]byte("signed"))
	prefix := signedHash[:8]
	row := sealedRow(sealer, docID, security.Checksum([]byte("original")), signedHash)

	mockRepo.On("GetHashBySignedPrefix", ctx, prefix).Return(row, nil)
	mockRepo.On("GetDocument", ctx, docID).Return(testDocument(docID), nil)
	mockRepo.On("ListCompletedSignatures", ctx, docID).Return([]signing.CompletedSignature{}, nil)

	report, err := service.VerifyChecksum(ctx, prefix)

	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, TierSigned, report.MatchTier)
	mockRepo.AssertNotCalled(t, "GetHashBySignedHash", mock.Anything, mock.Anything)
}

func TestVerifyChecksumNormalizesInput(t *testing.T) {
	mockRepo := new(MockRepository)
	sealer := newTestSealer(t)
	service := NewService(mockRepo, sealer, zap.NewNop())

	ctx := context.Background()
	docID := uuid.New()
	signedHash := security.Checksum([]byte("signed"))
	row := sealedRow(sealer, docID, security.Checksum([]byte("original")), signedHash)

	mockRepo.On("GetHashBySignedHash", ctx, signedHash).Return(row, nil)
	mockRepo.On("GetDocument", ctx, docID).Return(testDocument(docID), nil)
	mockRepo.On("ListCompletedSignatures", ctx, docID).Return([]signing.CompletedSignature{}, nil)

	report, err := service.VerifyChecksum(ctx, "  "+strings.ToUpper(signedHash)+"\n")

	require.NoError(t, err)
	assert.True(t, report.Found)
}

func TestVerifyChecksumTamperedSealReportsInvalid(t *testing.T) {
	mockRepo := new(MockRepository)
	sealer := newTestSealer(t)
	service := NewService(mockRepo, sealer, zap.NewNop())

	ctx := context.Background()
	docID := uuid.New()
	signedHash := security.Checksum([]byte("signed"))
	row := sealedRow(sealer, docID, security.Checksum([]byte("original")), signedHash)
	badMac := sealer.Sign("some other hash")
	row.SignatureData = &badMac

	mockRepo.On("GetHashBySignedHash", ctx, signedHash).Return(row, nil)
	mockRepo.On("GetDocument", ctx, docID).Return(testDocument(docID), nil)
	mockRepo.On("ListCompletedSignatures", ctx, docID).Return([]signing.CompletedSignature{}, nil)

	report, err := service.VerifyChecksum(ctx, signedHash)

	require.NoError(t, err)
	assert.True(t, report.Found, "the document is still identified")
	require.NotNil(t, report.HashInfo)
	assert.False(t, report.HashInfo.IsSignatureValid)
}

func TestVerifyChecksumMalformedTokenIsNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, newTestSealer(t), zap.NewNop())
	ctx := context.Background()

	for _, token := range []string{
		"",
		"not-hex-at-all!",
		"abcdef012",                        // nine chars, too long for a prefix
		strings.Repeat("a", 63),            // one short of a full hash
		strings.Repeat("a", 63) + "g",      // right length, bad alphabet
		strings.Repeat("a", 64) + "b",      // too long
	} {
		report, err := service.VerifyChecksum(ctx, token)
		require.NoError(t, err, "token %q", token)
		assert.False(t, report.Found, "token %q", token)
	}
	// No malformed token ever reaches the database.
	mockRepo.AssertNotCalled(t, "GetHashBySignedHash", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "GetHashBySignedPrefix", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "GetDocumentByChecksum", mock.Anything, mock.Anything)
}

func TestVerifyChecksumUnknownHashNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, newTestSealer(t), zap.NewNop())

	ctx := context.Background()
	sum := security.Checksum([]byte("never uploaded"))

	mockRepo.On("GetHashBySignedHash", ctx, sum).Return(nil, nil)
	mockRepo.On("GetHashByOriginalHash", ctx, sum).Return(nil, nil)
	mockRepo.On("GetDocumentByChecksum", ctx, sum).Return(nil, nil)

	report, err := service.VerifyChecksum(ctx, sum)

	require.NoError(t, err)
	assert.False(t, report.Found)
	assert.Empty(t, report.MatchTier)
}

func TestVerifyUploadHashesContent(t *testing.T) {
	mockRepo := new(MockRepository)
	sealer := newTestSealer(t)
	service := NewService(mockRepo, sealer, zap.NewNop())

	ctx := context.Background()
	content := []byte("%PDF-1.4 sealed bytes")
	sum := security.Checksum(content)
	docID := uuid.New()
	row := sealedRow(sealer, docID, security.Checksum([]byte("original")), sum)

	mockRepo.On("GetHashBySignedHash", ctx, sum).Return(row, nil)
	mockRepo.On("GetDocument", ctx, docID).Return(testDocument(docID), nil)
	mockRepo.On("ListCompletedSignatures", ctx, docID).Return([]signing.CompletedSignature{}, nil)

	report, err := service.VerifyUpload(ctx, content)

	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, TierSigned, report.MatchTier)
	assert.True(t, report.HashInfo.IsSignatureValid)
}
