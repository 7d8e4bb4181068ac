// Package release contains the update manifest data model.
//
// A Manifest maps a Channel to a PlatformSet, which maps a Platform to the
// signed Record describing the latest build for that platform. Channels,
// platforms and update type flags are closed sets: unknown values are
// rejected when parsed from flags or from a remote document.
package release
