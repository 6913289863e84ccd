package auth

import (
	"fmt"

	"github.com/sarathmodify/admin-dashboard/pkg/backend"
)

// RepositoryConfig contains configuration for creating a credential store
type RepositoryConfig struct {
	// Postgres is required for postgres persistence
	Postgres backend.CredentialStore
	// DataDir makes memory persistence survive restarts when set
	DataDir string
}

// NewCredentialStore creates a credential store based on the persistence type
func NewCredentialStore(persistenceType string, config RepositoryConfig) (backend.CredentialStore, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Postgres == nil {
			return nil, fmt.Errorf("postgres repository required for postgres credential store")
		}
		return config.Postgres, nil
	case "memory", "":
		if config.DataDir == "" {
			return NewMemoryCredentialStore(), nil
		}
		return NewFileCredentialStore(config.DataDir)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, memory)", persistenceType)
	}
}
