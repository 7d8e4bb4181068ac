package hashing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

const (
	// ChunkSize is the read buffer size used while streaming.
	ChunkSize = 64 * 1024

	// DigestSize is the BLAKE3 output length in bytes.
	DigestSize = 32
)

// errShortRead is returned when fewer bytes than announced could be read.
var errShortRead = errors.New("file changed while hashing")

// ProgressFunc observes hashing progress. It never affects the digest.
type ProgressFunc func(processed, total int64)

// File returns the lowercase hex BLAKE3 digest of the file at path.
func File(path string, progress ProgressFunc) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	digest, processed, err := stream(file, info.Size(), progress)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if processed != info.Size() {
		return "", fmt.Errorf("read %s: %w: got %d of %d bytes", path, errShortRead, processed, info.Size())
	}

	return digest, nil
}

// Reader returns the lowercase hex BLAKE3 digest of everything read from r.
// total is only passed through to progress; use -1 when unknown.
func Reader(r io.Reader, total int64, progress ProgressFunc) (string, error) {
	digest, _, err := stream(r, total, progress)
	if err != nil {
		return "", err
	}

	return digest, nil
}

// Bytes returns the lowercase hex BLAKE3 digest of data.
func Bytes(data []byte) string {
	sum := blake3.Sum256(data)

	return hex.EncodeToString(sum[:])
}

func stream(r io.Reader, total int64, progress ProgressFunc) (string, int64, error) {
	var (
		hasher    = blake3.New(DigestSize, nil)
		buffer    = make([]byte, ChunkSize)
		processed int64
	)

	for {
		n, err := r.Read(buffer)
		if n > 0 {
			// Hash writes never fail.
			_, _ = hasher.Write(buffer[:n])
			processed += int64(n)

			if progress != nil {
				progress(processed, total)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", processed, err
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), processed, nil
}
