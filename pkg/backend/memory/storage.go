package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

var _ backend.Storage = (*Storage)(nil)

type object struct {
	data        []byte
	contentType string
}

// Storage implements backend.Storage in memory
type Storage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object

	Faults Faults
}

// NewStorage creates an in-memory object store whose public URLs are rooted at baseURL
func NewStorage(baseURL string) *Storage {
	return &Storage{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]object),
	}
}

// Upload stores body under path and returns the stored path
func (s *Storage) Upload(ctx context.Context, path string, body io.Reader, contentType string) (string, error) {
	if err := s.Faults.apply(ctx, OpUpload); err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", apperrors.MutationFailed(err, "read upload body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{data: data, contentType: contentType}
	return path, nil
}

// PublicURL returns the public URL of path
func (s *Storage) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Remove deletes the given paths; missing paths are ignored
func (s *Storage) Remove(ctx context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

// Open returns the stored object, mainly for tests and the dev file route
func (s *Storage) Open(path string) (io.Reader, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(obj.data), obj.contentType, true
}
