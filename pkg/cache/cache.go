package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

// DecisionCache memoizes cacheable permission results keyed by
// (operation, resource, tool). Entries carry their own TTL. Lookups
// validate freshness themselves, so the periodic sweep is purely a memory
// reclamation concern and its timing never affects correctness.
type DecisionCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	defaultTTL time.Duration
	clock      types.Clock

	stopOnce sync.Once
	stopCh   chan struct{}
}

type entry struct {
	result    types.PermissionResult
	timestamp time.Time
	ttl       time.Duration
}

func New(defaultTTL time.Duration, clock types.Clock) *DecisionCache {
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &DecisionCache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		clock:      clock,
		stopCh:     make(chan struct{}),
	}
}

// Key builds the composite cache key for a context.
func Key(op types.Operation, uri, tool string) string {
	return fmt.Sprintf("%s|%s|%s", op, uri, tool)
}

// Get returns the cached result if present and not expired. The matched
// rule is cloned so no two callers ever share one, and neither can reach
// the stored copy.
func (c *DecisionCache) Get(key string) (types.PermissionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return types.PermissionResult{}, false
	}
	if c.clock.Now().After(e.timestamp.Add(e.ttl)) {
		return types.PermissionResult{}, false
	}
	return isolate(e.result), true
}

// Set stores a result, detached from the caller's matched rule. A
// non-positive ttl falls back to the default TTL.
func (c *DecisionCache) Set(key string, result types.PermissionResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{result: isolate(result), timestamp: c.clock.Now(), ttl: ttl}
}

func isolate(r types.PermissionResult) types.PermissionResult {
	if r.MatchedRule != nil {
		clone := r.MatchedRule.Clone()
		r.MatchedRule = &clone
	}
	return r
}

// Delete removes a single entry.
func (c *DecisionCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *DecisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of stored entries, expired or not.
func (c *DecisionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *DecisionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.timestamp.Add(e.ttl)) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until Stop is called.
func (c *DecisionCache) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper. Safe to call more than once.
func (c *DecisionCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
