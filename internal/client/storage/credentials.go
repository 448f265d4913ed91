package storage

import (
	"errors"
	"slices"

	"github.com/atinyakov/chemora/internal/models"
	"go.uber.org/zap"
)

const (
	keyAuth            = "auth"
	keyRegisteredUsers = "registeredUsers"
)

// CredentialStore keeps the active credential and the shadow list of
// usernames registered through this client.
type CredentialStore struct {
	kv    KV
	codec *Codec
	log   *zap.Logger
}

// NewCredentialStore wraps kv. Values are sealed with codec.
func NewCredentialStore(kv KV, codec *Codec, log *zap.Logger) *CredentialStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialStore{kv: kv, codec: codec, log: log}
}

// LoadCredential returns the stored credential. ok is false when nothing
// usable is stored; a value that fails to open (for example sealed with
// another secret) counts as absent.
func (s *CredentialStore) LoadCredential() (cred models.Credential, ok bool, err error) {
	ok, err = s.read(keyAuth, &cred)
	return cred, ok, err
}

// SaveCredential replaces the stored credential.
func (s *CredentialStore) SaveCredential(cred models.Credential) error {
	return s.write(keyAuth, cred)
}

// ClearCredential removes the stored credential.
func (s *CredentialStore) ClearCredential() error {
	return s.kv.Delete(keyAuth)
}

// RegisteredUsers returns the shadow list in registration order.
func (s *CredentialStore) RegisteredUsers() ([]string, error) {
	var users []string
	if _, err := s.read(keyRegisteredUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AddRegisteredUser appends username to the shadow list if absent.
func (s *CredentialStore) AddRegisteredUser(username string) error {
	users, err := s.RegisteredUsers()
	if err != nil {
		return err
	}
	if slices.Contains(users, username) {
		return nil
	}
	return s.write(keyRegisteredUsers, append(users, username))
}

// Close releases the backend.
func (s *CredentialStore) Close() error {
	return s.kv.Close()
}

func (s *CredentialStore) read(key string, dst any) (bool, error) {
	raw, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.codec.Open(key, raw, dst); err != nil {
		s.log.Warn("discarding unreadable stored value", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *CredentialStore) write(key string, v any) error {
	sealed, err := s.codec.Seal(key, v)
	if err != nil {
		return err
	}
	return s.kv.Set(key, sealed)
}
