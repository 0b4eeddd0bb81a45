package data

import "sync"

// resolutionCache records resolver tasks that have been scheduled but have
// not yet written START_RESOLUTION. It is not part of store state.
type resolutionCache struct {
	mu      sync.Mutex
	running map[string]map[string]bool
}

func newResolutionCache() *resolutionCache {
	return &resolutionCache{running: map[string]map[string]bool{}}
}

func (c *resolutionCache) isRunning(selectorName, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running[selectorName][key]
}

func (c *resolutionCache) markAsRunning(selectorName, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(selectorName, key)
}

func (c *resolutionCache) markLocked(selectorName, key string) {
	if c.running[selectorName] == nil {
		c.running[selectorName] = map[string]bool{}
	}
	c.running[selectorName][key] = true
}

func (c *resolutionCache) clear(selectorName, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running[selectorName], key)
	if len(c.running[selectorName]) == 0 {
		delete(c.running, selectorName)
	}
}

// tryMark atomically checks that key is neither running nor started and
// marks it running. started is evaluated while the cache lock is held.
func (c *resolutionCache) tryMark(selectorName, key string, started func() bool) (marked bool, reason SkipReason) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running[selectorName][key] {
		return false, SkipRunning
	}
	if started() {
		return false, SkipStarted
	}
	c.markLocked(selectorName, key)
	return true, ""
}
