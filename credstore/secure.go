package credstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// DefaultMaxValueSize matches the value limit of the platform secure stores.
const DefaultMaxValueSize = 2048

const hkdfInfo = "testalbum credstore v1"

// SecureStore encrypts values with XChaCha20-Poly1305 before handing them to
// the underlying store. The key name is bound as associated data so a
// ciphertext cannot be replayed under another key.
type SecureStore struct {
	backing      Store
	aead         cipher.AEAD
	maxValueSize int
}

var _ Store = (*SecureStore)(nil)

type SecureOption func(*SecureStore)

// WithMaxValueSize overrides DefaultMaxValueSize. Zero or less disables the limit.
func WithMaxValueSize(n int) SecureOption {
	return func(s *SecureStore) {
		s.maxValueSize = n
	}
}

// NewSecureStore derives the encryption key from secret with HKDF-SHA256.
func NewSecureStore(backing Store, secret []byte, opts ...SecureOption) (*SecureStore, error) {
	if backing == nil {
		return nil, errors.New("[NewSecureStore] backing store is required")
	}
	if len(secret) < 16 {
		return nil, errors.New("[NewSecureStore] secret must be at least 16 bytes")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("[NewSecureStore] derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("[NewSecureStore] cipher: %w", err)
	}

	s := &SecureStore{
		backing:      backing,
		aead:         aead,
		maxValueSize: DefaultMaxValueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SecureStore) GetItem(ctx context.Context, key string) (string, error) {
	sealed, err := s.backing.GetItem(ctx, key)
	if err != nil {
		return "", err
	}
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("[SecureStore GetItem] %s: corrupt value: %w", key, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", fmt.Errorf("[SecureStore GetItem] %s: corrupt value", key)
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(key))
	if err != nil {
		return "", fmt.Errorf("[SecureStore GetItem] %s: decrypt: %w", key, err)
	}
	return string(plain), nil
}

func (s *SecureStore) SetItem(ctx context.Context, key, value string) error {
	if s.maxValueSize > 0 && len(value) > s.maxValueSize {
		return fmt.Errorf("[SecureStore SetItem] %s is %d bytes: %w", key, len(value), ErrValueTooLarge)
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("[SecureStore SetItem] nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.backing.SetItem(ctx, key, base64.RawStdEncoding.EncodeToString(sealed))
}

func (s *SecureStore) RemoveItem(ctx context.Context, key string) error {
	return s.backing.RemoveItem(ctx, key)
}
