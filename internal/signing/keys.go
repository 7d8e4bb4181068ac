package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/secrets"
)

var (
	// ErrKeyExists is returned when generating a key would replace an existing one.
	ErrKeyExists = errors.New("a signing key already exists, pass --force to replace it")
	// errNotEd25519 is returned for OpenSSH keys of another algorithm.
	errNotEd25519 = errors.New("key is not an ed25519 private key")
)

// EncodePrivateKey renders key as an unencrypted OpenSSH PEM block.
func EncodePrivateKey(key ed25519.PrivateKey) (string, error) {
	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		return "", apperr.Signature("encode signing key", err)
	}

	return string(pem.EncodeToMemory(block)), nil
}

// DecodePrivateKey parses an OpenSSH PEM private key.
func DecodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := ssh.ParseRawPrivateKey([]byte(strings.TrimSpace(encoded) + "\n"))
	if err != nil {
		return nil, apperr.Signature("decode signing key", err)
	}

	switch key := raw.(type) {
	case ed25519.PrivateKey:
		return key, nil
	case *ed25519.PrivateKey:
		return *key, nil
	default:
		return nil, apperr.Signature("decode signing key", fmt.Errorf("%w: %T", errNotEd25519, raw))
	}
}

// EncodePublicKey renders the public key in authorized_keys form.
func EncodePublicKey(publicKey ed25519.PublicKey) (string, error) {
	sshKey, err := ssh.NewPublicKey(publicKey)
	if err != nil {
		return "", apperr.Signature("encode public key", err)
	}

	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshKey))), nil
}

// EncodePublicKeyRaw renders the 32 raw public key bytes as base64, the form
// embedded in client applications.
func EncodePublicKeyRaw(publicKey ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(publicKey)
}

// ParsePublicKey accepts either the authorized_keys form or raw base64.
func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)

	if strings.HasPrefix(encoded, ssh.KeyAlgoED25519) {
		sshKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(encoded))
		if err != nil {
			return nil, apperr.Signature("parse public key", err)
		}

		cryptoKey, ok := sshKey.(ssh.CryptoPublicKey)
		if !ok {
			return nil, apperr.Signature("parse public key", ErrInvalidPublicKey)
		}

		publicKey, ok := cryptoKey.CryptoPublicKey().(ed25519.PublicKey)
		if !ok {
			return nil, apperr.Signature("parse public key", ErrInvalidPublicKey)
		}

		return publicKey, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, apperr.Signature("parse public key", ErrInvalidPublicKey)
	}

	return ed25519.PublicKey(raw), nil
}

// LoadSigner returns a signer for the override key when set, otherwise for
// the key in store. A missing key yields ErrNoSigningKey; an unreadable one
// yields the decode error.
func LoadSigner(store secrets.Store, override string) (*Signer, error) {
	encoded, err := secrets.Lookup(store, override, secrets.PrivateKey)
	if errors.Is(err, secrets.ErrNotFound) {
		return nil, apperr.Signature("load signing key", ErrNoSigningKey)
	}

	if err != nil {
		return nil, apperr.Signature("load signing key", err)
	}

	key, err := DecodePrivateKey(encoded)
	if err != nil {
		return nil, err
	}

	return NewSigner(key)
}

// GenerateAndStore creates a key and saves it to store. It refuses to
// replace an existing key unless overwrite is set, because clients trust
// the published public key.
func GenerateAndStore(store secrets.Store, overwrite bool) (*Signer, error) {
	if !overwrite {
		_, err := store.Get(secrets.PrivateKey)
		if err == nil {
			return nil, apperr.Validation("generate signing key", ErrKeyExists)
		}

		if !errors.Is(err, secrets.ErrNotFound) {
			return nil, apperr.Signature("generate signing key", err)
		}
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	if err = storeKey(store, key); err != nil {
		return nil, err
	}

	return NewSigner(key)
}

// Import validates an OpenSSH private key and saves it to store.
func Import(store secrets.Store, encoded string) (*Signer, error) {
	key, err := DecodePrivateKey(encoded)
	if err != nil {
		return nil, err
	}

	if err = storeKey(store, key); err != nil {
		return nil, err
	}

	return NewSigner(key)
}

// Export returns the signer's private key in OpenSSH PEM form.
func (s *Signer) Export() (string, error) {
	return EncodePrivateKey(s.key)
}

func storeKey(store secrets.Store, key ed25519.PrivateKey) error {
	encoded, err := EncodePrivateKey(key)
	if err != nil {
		return err
	}

	if err = store.Set(secrets.PrivateKey, encoded); err != nil {
		return apperr.Signature("store signing key", err)
	}

	return nil
}
