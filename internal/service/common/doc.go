// Package common holds helpers shared by the command workflows: operator
// prompts, terminal progress, the local publish lock and detection of the
// acting user for audit logs.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
