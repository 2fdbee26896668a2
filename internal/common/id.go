package common

import "github.com/google/uuid"

// NewID generates a prefixed opaque identifier for the given entity kind,
// e.g. NewID("news") -> "news_3fa9...".
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
