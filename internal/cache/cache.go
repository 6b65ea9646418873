package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching search and fetch responses
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a namespaced cache key from an arbitrary identifier
// (a URL or a search query)
func Key(id string) string {
	hash := sha256.Sum256([]byte(id))
	return "veridex:v1:" + hex.EncodeToString(hash[:])
}
