package secrets

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// DefaultService is the keyring service all secrets are stored under.
	DefaultService = "sm-tools"

	// PrivateKey holds the OpenSSH-encoded Ed25519 signing key.
	PrivateKey = "private-key"
	// B2APIKey holds the storage application key.
	B2APIKey = "b2-api-key"
	// CachePurgeToken holds the Cloudflare cache purge API token.
	CachePurgeToken = "cf-cache-purge-token"
)

// maskVisible is how many trailing characters Mask leaves readable.
const maskVisible = 4

var (
	// ErrNotFound is returned when a secret is absent.
	ErrNotFound = errors.New("secret not found")
	// ErrUnknownCredential is returned for credential names outside CredentialKeys.
	ErrUnknownCredential = errors.New("unknown credential")
)

// CredentialKeys returns the API credentials the tool reads from the keyring.
// The signing key is managed separately.
func CredentialKeys() []string {
	return []string{B2APIKey, CachePurgeToken}
}

// CheckCredentialKey fails for names that are not API credentials.
func CheckCredentialKey(key string) error {
	if slices.Contains(CredentialKeys(), key) {
		return nil
	}

	return fmt.Errorf("%w %q (known: %s)", ErrUnknownCredential, key, strings.Join(CredentialKeys(), ", "))
}

// Mask hides all but the last characters of a secret. Short secrets are
// hidden completely.
func Mask(value string) string {
	if len(value) <= 2*maskVisible {
		return strings.Repeat("*", len(value))
	}

	return strings.Repeat("*", len(value)-maskVisible) + value[len(value)-maskVisible:]
}

// Store reads and writes named secrets.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringStore keeps secrets in the operating system keyring.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store scoped to service, or DefaultService when empty.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}

	return &KeyringStore{
		service: service,
	}
}

// Get returns the secret or ErrNotFound.
func (s *KeyringStore) Get(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	if err != nil {
		return "", fmt.Errorf("read %s from keyring: %w", key, err)
	}

	return value, nil
}

// Set stores or replaces the secret.
func (s *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("write %s to keyring: %w", key, err)
	}

	return nil
}

// Delete removes the secret. Deleting an absent secret returns ErrNotFound.
func (s *KeyringStore) Delete(key string) error {
	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("delete %s from keyring: %w", key, err)
	}

	return nil
}

// Lookup returns override when set, otherwise the stored secret.
func Lookup(store Store, override, key string) (string, error) {
	if override != "" {
		return override, nil
	}

	if store == nil {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	return store.Get(key)
}
