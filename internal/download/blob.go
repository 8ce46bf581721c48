package download

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MarkdownType is the media type of exported documents.
const MarkdownType = "text/markdown"

// ErrInvalidURL is returned for object URLs that were never created or have
// been revoked.
var ErrInvalidURL = errors.New("invalid object URL")

// Blob is an immutable chunk of typed data.
type Blob struct {
	Data []byte
	Type string
}

// NewMarkdownBlob wraps a Markdown document.
func NewMarkdownBlob(text string) Blob {
	return Blob{Data: []byte(text), Type: MarkdownType}
}

// BlobStore hands out object URLs for blobs until they are revoked.
type BlobStore struct {
	mu    sync.Mutex
	blobs map[string]Blob
}

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]Blob)}
}

// CreateObjectURL registers b and returns the URL it can be read from.
func (s *BlobStore) CreateObjectURL(b Blob) string {
	url := "blob:gemd/" + uuid.NewString()

	s.mu.Lock()
	s.blobs[url] = b
	s.mu.Unlock()
	return url
}

// Read returns the blob behind url.
func (s *BlobStore) Read(url string) (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[url]
	if !ok {
		return Blob{}, ErrInvalidURL
	}
	return b, nil
}

// RevokeObjectURL releases url. Revoking an unknown URL is a no-op.
func (s *BlobStore) RevokeObjectURL(url string) {
	s.mu.Lock()
	delete(s.blobs, url)
	s.mu.Unlock()
}

// Len reports how many URLs are live.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
