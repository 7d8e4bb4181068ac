// Package publisher implements the publish workflow: fetch the live
// manifest, prepare and sign one record per platform, show the diff, ask
// for confirmation, upload the merged manifest and purge the CDN.
//
// The workflow moves through FETCHING, DIFFING, AWAITING_CONFIRMATION,
// UPLOADING, INVALIDATING and DONE. Artifacts uploaded during an
// invocation are deleted again if anything before the manifest upload
// completes fails, including the operator declining.
package publisher
