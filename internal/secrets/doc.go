// Package secrets reads and writes credentials in the operating system
// keyring: the signing private key and API tokens that should not live in
// the settings file.
package secrets
