package storage

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// Codec seals values with an HMAC and AES keyed from a local secret.
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodecFromSecret derives the hash and block keys from secret with
// HKDF-SHA256.
func NewCodecFromSecret(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("derive keys: empty secret")
	}
	hashKey, err := deriveKey(secret, "chemora-hash", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "chemora-block", 32)
	if err != nil {
		return nil, err
	}

	sc := securecookie.New(hashKey, blockKey).
		MaxAge(0).
		MaxLength(0).
		SetSerializer(securecookie.JSONEncoder{})
	return &Codec{sc: sc}, nil
}

func deriveKey(secret []byte, info string, n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// Seal encodes v under name. The name is authenticated, so a value sealed
// for one key cannot be replayed under another.
func (c *Codec) Seal(name string, v any) ([]byte, error) {
	s, err := c.sc.Encode(name, v)
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", name, err)
	}
	return []byte(s), nil
}

// Open verifies and decodes data sealed under name into dst.
func (c *Codec) Open(name string, data []byte, dst any) error {
	if err := c.sc.Decode(name, string(data), dst); err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	return nil
}
