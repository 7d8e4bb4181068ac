// Package signing signs and verifies release records with Ed25519.
//
// The signed bytes are the record's canonical payload. Private keys are
// exchanged in the OpenSSH PEM format and kept in the secret store unless
// an override is configured.
package signing
