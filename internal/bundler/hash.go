package bundler

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const hashLength = 20

// HashContents returns the hex SHA256 of data
func HashContents(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashParts combines named hashes into a short build hash.
// The result is independent of map order.
func HashParts(parts map[string]string) string {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(parts[k]))
		h.Write([]byte{0})
	}

	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))[:hashLength]
}
