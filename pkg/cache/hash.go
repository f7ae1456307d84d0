package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Separator joins key parts.
const Separator = ":"

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key builds a deterministic key from parts. Each part is trimmed,
// lowercased and has separator characters escaped, so distinct part lists
// never collide: Key("a:b", "c") != Key("a", "b:c").
func Key(parts ...any) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		s := strings.ToLower(strings.TrimSpace(fmt.Sprint(p)))
		out[i] = keyEscaper.Replace(s)
	}
	return strings.Join(out, Separator)
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
