package token

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

type fakeSetup struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSetup() *fakeSetup {
	return &fakeSetup{values: map[string]string{}}
}

func (f *fakeSetup) GetValue(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}

	return v, nil
}

func (f *fakeSetup) InsertValue(_ context.Context, key, value, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.values[key]; ok {
		return errors.New("UNIQUE constraint failed: setup_config.config_key")
	}
	f.values[key] = value

	return nil
}

func TestSigningSecretCreatedOnce(t *testing.T) {
	setup := newFakeSetup()
	store := NewSecretStore(setup)
	ctx := context.Background()

	first, err := store.SigningSecret(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := store.SigningSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Len(t, setup.values, 1)
}

// losingSetup simulates the first-run race: the read misses, and by the time
// this process inserts, another process has already claimed the key.
type losingSetup struct {
	reads int
	value string
}

func (l *losingSetup) GetValue(_ context.Context, _ string) (string, error) {
	l.reads++
	if l.reads == 1 {
		return "", storage.ErrNotFound
	}

	return l.value, nil
}

func (l *losingSetup) InsertValue(_ context.Context, _, _, _ string) error {
	return errors.New("UNIQUE constraint failed: setup_config.config_key")
}

func TestSigningSecretLosesFirstRunRace(t *testing.T) {
	setup := &losingSetup{value: "the-winners-secret"}
	store := NewSecretStore(setup)

	got, err := store.SigningSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("the-winners-secret"), got)
}

type brokenSetup struct{}

func (brokenSetup) GetValue(_ context.Context, _ string) (string, error) {
	return "", errors.New("database unreachable")
}

func (brokenSetup) InsertValue(_ context.Context, _, _, _ string) error {
	return errors.New("database unreachable")
}

func TestSigningSecretStorageFailure(t *testing.T) {
	store := NewSecretStore(brokenSetup{})

	_, err := store.SigningSecret(context.Background())
	assert.Error(t, err)
}
