// Package apperr classifies failures of the publishing tool.
//
// Every error that reaches the CLI carries one of a small set of kinds
// (validation, transport, signature, parse) so the operator sees a
// distinguishable reason. CleanupError reports compensating deletions that
// did not complete next to the error that triggered them.
package apperr
