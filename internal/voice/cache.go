package voice

import (
	"fmt"
	"sync"

	"github.com/mpetrucci/pitchcoach/internal/persona"
)

// ResponseCache keeps synthesized reply audio keyed by text, voice and
// speed. It holds at most capacity entries, evicting the oldest insertion
// when full. A synthesis failure clears the whole cache so stale entries
// never outlive a provider incident.
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]byte
	order    []string

	onEvent func(event string)
}

func NewResponseCache(capacity int) *ResponseCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &ResponseCache{
		capacity: capacity,
		entries:  make(map[string][]byte),
	}
}

// SetEventHook registers a callback for hit/miss/evict/clear accounting.
func (c *ResponseCache) SetEventHook(hook func(event string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = hook
}

func cacheKey(text string, voice persona.VoiceProfile) string {
	return fmt.Sprintf("%s-%s-%g", text, voice.VoiceID, voice.Speed)
}

func (c *ResponseCache) Get(text string, voice persona.VoiceProfile) ([]byte, bool) {
	key := cacheKey(text, voice)
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		c.emit("hit")
		return data, true
	}
	c.emit("miss")
	return nil, false
}

func (c *ResponseCache) Put(text string, voice persona.VoiceProfile, data []byte) {
	key := cacheKey(text, voice)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = data
		return
	}
	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.emit("evict")
	}
	c.entries[key] = data
	c.order = append(c.order, key)
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.order = nil
	c.emit("clear")
}

func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) emit(event string) {
	if c.onEvent != nil {
		c.onEvent(event)
	}
}
