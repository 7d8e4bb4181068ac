// Package manifest retrieves the published update manifest over HTTP.
//
// Every request bypasses intermediate caches so a publish always diffs
// against the document that is actually live.
package manifest
