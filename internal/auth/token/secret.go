package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shaddad2189/sfconnect-v11/internal/auth/secret"
	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

const (
	signingSecretKey  = "jwt_secret"
	signingSecretSize = 32
)

type SetupStorage interface {
	GetValue(ctx context.Context, key string) (string, error)
	InsertValue(ctx context.Context, key string, value string, metadata string) error
}

// SecretStore provides the process-wide token signing secret. The secret is
// generated once, persisted in setup_config, and read back on every use so
// that every process shares the same value. There is no in-memory fallback:
// if storage is unreachable, token issuance and verification fail.
type SecretStore struct {
	storage SetupStorage
}

func NewSecretStore(storage SetupStorage) *SecretStore {
	return &SecretStore{
		storage: storage,
	}
}

func (s *SecretStore) SigningSecret(ctx context.Context) ([]byte, error) {
	value, err := s.storage.GetValue(ctx, signingSecretKey)
	if err == nil {
		return []byte(value), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("read signing secret: %w", err)
	}

	generated, err := secret.New(signingSecretSize)
	if err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}

	metadata, err := json.Marshal(struct {
		AutoGenerated bool   `json:"auto_generated"`
		CreatedAt     string `json:"created_at"`
	}{
		AutoGenerated: true,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	// A concurrent first run may have inserted between the read and here.
	// The key's uniqueness constraint rejects the second insert, so losing
	// the race is resolved by re-reading the winner's value.
	insertErr := s.storage.InsertValue(ctx, signingSecretKey, generated, string(metadata))

	value, err = s.storage.GetValue(ctx, signingSecretKey)
	if errors.Is(err, storage.ErrNotFound) && insertErr != nil {
		return nil, fmt.Errorf("store signing secret: %w", insertErr)
	}
	if err != nil {
		return nil, fmt.Errorf("read signing secret: %w", err)
	}

	return []byte(value), nil
}
