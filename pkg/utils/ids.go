// pkg/utils/ids.go
package utils

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewQueryID generates a unique identifier for one rerank request.
// The ID is stamped on every analytics row produced for that request so
// shadow predictions can be joined back to the originating query offline.
func NewQueryID() string {
	return uuid.NewString()
}

// MD5Hash generates MD5 hash of input string
func MD5Hash(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])
}

// ValidateConversationID checks that a caller-supplied conversation key is
// usable as a cache key. The value is opaque and never parsed; only empty
// strings are rejected.
func ValidateConversationID(conversationID string) bool {
	return conversationID != ""
}
