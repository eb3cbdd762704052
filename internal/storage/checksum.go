package storage

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum identifies file content. Sync and the watcher compare it with
// the value the index recorded to decide whether a note needs reparsing.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
