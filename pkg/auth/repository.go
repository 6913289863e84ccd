package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

var _ backend.CredentialStore = (*FileCredentialStore)(nil)

// FileCredentialStore keeps credentials in memory and, when dataDir is set,
// mirrors them to dataDir/credentials.json
type FileCredentialStore struct {
	dataDir string
	creds   map[uuid.UUID]backend.Credential
	mutex   sync.RWMutex
}

// NewMemoryCredentialStore creates a credential store that never touches disk
func NewMemoryCredentialStore() *FileCredentialStore {
	return &FileCredentialStore{creds: make(map[uuid.UUID]backend.Credential)}
}

// NewFileCredentialStore creates a file-backed credential store
func NewFileCredentialStore(dataDir string) (*FileCredentialStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &FileCredentialStore{
		dataDir: dataDir,
		creds:   make(map[uuid.UUID]backend.Credential),
	}
	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return store, nil
}

// GetCredentialByEmail retrieves a credential by email (case-insensitive)
func (s *FileCredentialStore) GetCredentialByEmail(ctx context.Context, email string) (backend.Credential, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, c := range s.creds {
		if strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return backend.Credential{}, apperrors.NotFound("credential", email)
}

// GetCredential retrieves a credential by user ID
func (s *FileCredentialStore) GetCredential(ctx context.Context, userID uuid.UUID) (backend.Credential, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	c, ok := s.creds[userID]
	if !ok {
		return backend.Credential{}, apperrors.NotFound("credential", userID.String())
	}
	return c, nil
}

// CreateCredential stores a new credential. Emails are unique case-insensitively.
func (s *FileCredentialStore) CreateCredential(ctx context.Context, cred backend.Credential) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, c := range s.creds {
		if strings.EqualFold(c.Email, cred.Email) {
			return apperrors.Validation("email", "already registered")
		}
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	s.creds[cred.UserID] = cred
	return s.save()
}

// UpdatePasswordHash replaces the stored password hash
func (s *FileCredentialStore) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c, ok := s.creds[userID]
	if !ok {
		return apperrors.NotFound("credential", userID.String())
	}
	c.PasswordHash = hash
	s.creds[userID] = c
	return s.save()
}

// load reads credentials from file
func (s *FileCredentialStore) load() error {
	filePath := filepath.Join(s.dataDir, "credentials.json")

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var creds []backend.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, c := range creds {
		s.creds[c.UserID] = c
	}
	return nil
}

// save writes credentials to file atomically. No-op without a data directory.
func (s *FileCredentialStore) save() error {
	if s.dataDir == "" {
		return nil
	}

	creds := make([]backend.Credential, 0, len(s.creds))
	for _, c := range s.creds {
		creds = append(creds, c)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return apperrors.MutationFailed(err, "marshal credentials")
	}

	tempFile := filepath.Join(s.dataDir, "credentials.json.tmp")
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return apperrors.MutationFailed(err, "write credentials")
	}
	if err := os.Rename(tempFile, filepath.Join(s.dataDir, "credentials.json")); err != nil {
		return apperrors.MutationFailed(err, "rename credentials file")
	}
	return nil
}
