// Package checker fetches the live manifest, prints it and optionally
// verifies every record signature.
package checker
