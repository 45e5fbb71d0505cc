package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache defines the interface for caching operations
type Cache interface {
	// Get retrieves a value from the cache
	// Returns the value and a boolean indicating whether the key was found
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set adds a value to the cache with the specified expiration
	// If expiration is 0, the item never expires (but may be evicted)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)

	// Flush removes all items from the cache
	Flush(ctx context.Context)
}

// Predefined cache key prefixes for different entity types
const (
	PrefixDiscount = "discount:v1:"
	PrefixCustomer = "customer:v1:"
)

// Key builds a namespaced cache key from a prefix and its parts
func Key(prefix string, parts ...string) string {
	key := prefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// TenantKey builds a cache key scoped by tenant and environment
func TenantKey(prefix, tenantID, environmentID string, parts ...string) string {
	return Key(prefix, append([]string{fmt.Sprintf("%s:%s", tenantID, environmentID)}, parts...)...)
}
