package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
)

var (
	// ErrNoSigningKey is returned when no private key is available.
	ErrNoSigningKey = errors.New(
		"no signing key configured: run `release-publisher keys new` or set SM_SIGNING_PRIVATE_KEY")
	// ErrInvalidPublicKey is returned when a public key has the wrong size.
	ErrInvalidPublicKey = errors.New("invalid ed25519 public key")
	// ErrInvalidPrivateKey is returned when a private key has the wrong size.
	ErrInvalidPrivateKey = errors.New("invalid ed25519 private key")
)

// Signer holds the active private key.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSigner wraps key.
func NewSigner(key ed25519.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, apperr.Signature("load signing key", ErrInvalidPrivateKey)
	}

	return &Signer{
		key: key,
	}, nil
}

// GenerateKey creates a new random Ed25519 private key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, apperr.Signature("generate signing key", err)
	}

	return key, nil
}

// PublicKey returns the public half of the signing key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	//nolint:forcetypeassert // ed25519.PrivateKey.Public always returns ed25519.PublicKey.
	return s.key.Public().(ed25519.PublicKey)
}

// Sign returns the raw signature over payload.
func (s *Signer) Sign(payload []byte) []byte {
	return ed25519.Sign(s.key, payload)
}

// SignRecord validates record and stores the base64 signature over its
// canonical payload in record.Signature.
func (s *Signer) SignRecord(record *release.Record) error {
	if s == nil || len(s.key) == 0 {
		return apperr.Signature("sign record", ErrNoSigningKey)
	}

	if err := record.Validate(); err != nil {
		return err
	}

	record.Signature = base64.StdEncoding.EncodeToString(s.Sign(record.SigningPayload()))

	return nil
}

// Verify reports whether signature is a valid base64 Ed25519 signature of
// payload. Malformed signatures yield false; only an unusable public key
// is an error.
func Verify(publicKey ed25519.PublicKey, payload []byte, signature string) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, apperr.Signature("verify signature", fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(publicKey)))
	}

	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return false, nil
	}

	return ed25519.Verify(publicKey, payload, raw), nil
}

// VerifyRecord verifies record.Signature against the record's payload.
func VerifyRecord(publicKey ed25519.PublicKey, record *release.Record) (bool, error) {
	if record == nil || record.Signature == "" {
		return false, nil
	}

	return Verify(publicKey, record.SigningPayload(), record.Signature)
}
