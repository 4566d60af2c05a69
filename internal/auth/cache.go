package auth

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheTTL bounds how long a resolved permission set may be
	// reused. It must stay well below administrative reaction time: a set
	// can be at most this stale after an override or role change on a node
	// that missed the explicit invalidation.
	DefaultCacheTTL = 30 * time.Second

	defaultCacheSize = 4096
)

// DecisionCache memoizes resolved permission sets per (principal, branch).
// It is an explicit dependency injected into the Service; there is no
// package-level cache and no manual global clear.
type DecisionCache struct {
	lru *expirable.LRU[string, PermissionSet]
}

// NewDecisionCache builds a TTL-bounded cache. size <= 0 and ttl <= 0 fall
// back to the defaults.
func NewDecisionCache(size int, ttl time.Duration) *DecisionCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DecisionCache{
		lru: expirable.NewLRU[string, PermissionSet](size, nil, ttl),
	}
}

func cacheKey(userID, branchID string) string {
	return userID + "\x00" + branchID
}

func (c *DecisionCache) get(userID, branchID string) (PermissionSet, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(cacheKey(userID, branchID))
}

func (c *DecisionCache) put(userID, branchID string, set PermissionSet) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(userID, branchID), set)
}

// Invalidate drops every cached set for the principal, across all branches.
// Called on login, logout-all and any override/role mutation.
func (c *DecisionCache) Invalidate(userID string) {
	if c == nil {
		return
	}
	prefix := userID + "\x00"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// Purge empties the cache entirely.
func (c *DecisionCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
