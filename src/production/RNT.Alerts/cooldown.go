package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// CooldownCache suppresses repeated alerts for the same
// (machine, sensor type, severity) key within a TTL. Process-local and
// non-persistent: a restart clears it, which only risks one extra alert.
type CooldownCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration

	now func() time.Time
}

func NewCooldownCache(ttl time.Duration) *CooldownCache {
	return &CooldownCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func cooldownKey(machineID, sensorType string, severity rntmodels.Severity) string {
	return fmt.Sprintf("%s|%s|%s", machineID, sensorType, severity)
}

// ShouldSend reports whether an alert for the key may be emitted now.
func (c *CooldownCache) ShouldSend(machineID, sensorType string, severity rntmodels.Severity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	sentAt, ok := c.entries[cooldownKey(machineID, sensorType, severity)]
	if !ok {
		return true
	}
	return c.now().Sub(sentAt) >= c.ttl
}

// MarkSent records an emission for the key.
func (c *CooldownCache) MarkSent(machineID, sensorType string, severity rntmodels.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cooldownKey(machineID, sensorType, severity)] = c.now()
}

// Clear drops every severity entry for (machine, sensor type). Called
// when severity returns to normal so that re-escalation is never
// suppressed.
func (c *CooldownCache) Clear(machineID, sensorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, severity := range []rntmodels.Severity{rntmodels.SeverityCaution, rntmodels.SeverityWarning, rntmodels.SeverityCritical} {
		delete(c.entries, cooldownKey(machineID, sensorType, severity))
	}
}

// Sweep evicts entries older than the TTL and returns how many were
// removed.
func (c *CooldownCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, sentAt := range c.entries {
		if now.Sub(sentAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper evicts expired entries on the given interval until the
// context is cancelled.
func (c *CooldownCache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Len returns the number of live entries, for health reporting.
func (c *CooldownCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
