package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash identifies a question by its content and option set. Option
// order does not affect the hash.
func ContentHash(content string, opts Options) string {
	m := make(map[string]string, len(opts))
	for _, o := range opts {
		m[o.Key] = o.Text
	}
	// Map keys marshal in sorted order.
	b, _ := json.Marshal(m)
	sum := sha256.Sum256([]byte(content + "-" + string(b)))
	return hex.EncodeToString(sum[:])
}
