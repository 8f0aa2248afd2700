package storage

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures an ObjectStorage backend.
type Config struct {
	Type      StorageType
	LocalDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	PublicURL string
}

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - ctx: context used for bucket checks on remote backends.
//   - cfg: storage configuration.
//
// Returns:
//   - ObjectStorage: initialized backend, or nil when archiving is disabled.
//   - error: non-nil if the backend cannot be created.
func NewStorage(ctx context.Context, cfg *Config) (ObjectStorage, error) {
	if cfg == nil {
		return nil, nil
	}

	typ := cfg.Type
	if typ == "" && cfg.Endpoint != "" {
		typ = detectStorageType(cfg.Endpoint)
	}

	switch typ {
	case "", StorageTypeNone:
		return nil, nil
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir)
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		cfg.Type = typ
		s, err := NewS3Storage(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", typ)
	}
}

// detectStorageType guesses the S3 flavour from the endpoint host.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
