// Package digest computes content hashes used as document keys.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// ChunkSize is the read buffer used when streaming content into the digest.
const ChunkSize = 8 * 1024

// SHA256Hex hashes an in-memory payload.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Reader streams r through SHA-256 in ChunkSize pieces and returns the
// hex digest and the number of bytes read.
func SHA256Reader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.CopyBuffer(h, onlyReader{r}, make([]byte, ChunkSize))
	if err != nil {
		return "", n, fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// onlyReader hides WriterTo/ReaderFrom so CopyBuffer really uses the buffer.
type onlyReader struct {
	io.Reader
}
