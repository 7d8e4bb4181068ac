// Package storage uploads, finds and deletes objects in the release bucket.
//
// The bucket is reached through its S3-compatible API, which both Backblaze
// B2 and most other object stores expose. Callers depend on the Store
// interface so workflows can be exercised against in-memory fakes.
package storage
