package storage

import "context"

// BlobStore holds document bytes and signer mark images. Keys are
// slash-separated opaque paths; writers always target a fresh key so
// concurrent readers of the previous key never observe a partial file.
type BlobStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
