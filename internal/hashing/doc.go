// Package hashing fingerprints release artifacts with BLAKE3.
//
// Files are streamed in fixed-size chunks so multi-hundred-megabyte
// artifacts never have to fit in memory.
package hashing
