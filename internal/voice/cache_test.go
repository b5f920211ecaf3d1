package voice

import (
	"testing"

	"github.com/mpetrucci/pitchcoach/internal/persona"
)

var novaVoice = persona.VoiceProfile{VoiceID: "nova", Speed: 1.0}

func TestResponseCachePutGet(t *testing.T) {
	c := NewResponseCache(10)
	if _, ok := c.Get("hello", novaVoice); ok {
		t.Fatalf("hit on empty cache")
	}
	c.Put("hello", novaVoice, []byte{1, 2})
	data, ok := c.Get("hello", novaVoice)
	if !ok || len(data) != 2 {
		t.Fatalf("Get = %v, %v", data, ok)
	}
}

func TestResponseCacheKeyIncludesVoiceAndSpeed(t *testing.T) {
	c := NewResponseCache(10)
	c.Put("hello", novaVoice, []byte{1})
	if _, ok := c.Get("hello", persona.VoiceProfile{VoiceID: "echo", Speed: 1.0}); ok {
		t.Fatalf("hit across different voice")
	}
	if _, ok := c.Get("hello", persona.VoiceProfile{VoiceID: "nova", Speed: 0.95}); ok {
		t.Fatalf("hit across different speed")
	}
}

func TestResponseCacheEvictsOldestAtCapacity(t *testing.T) {
	c := NewResponseCache(3)
	c.Put("a", novaVoice, []byte{1})
	c.Put("b", novaVoice, []byte{2})
	c.Put("c", novaVoice, []byte{3})
	c.Put("d", novaVoice, []byte{4})

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("a", novaVoice); ok {
		t.Fatalf("oldest entry survived eviction")
	}
	if _, ok := c.Get("d", novaVoice); !ok {
		t.Fatalf("newest entry missing")
	}
}

func TestResponseCacheOverwriteDoesNotEvict(t *testing.T) {
	c := NewResponseCache(2)
	c.Put("a", novaVoice, []byte{1})
	c.Put("b", novaVoice, []byte{2})
	c.Put("a", novaVoice, []byte{9})

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	data, ok := c.Get("a", novaVoice)
	if !ok || data[0] != 9 {
		t.Fatalf("overwrite lost: %v %v", data, ok)
	}
	if _, ok := c.Get("b", novaVoice); !ok {
		t.Fatalf("sibling entry evicted on overwrite")
	}
}

func TestResponseCacheClear(t *testing.T) {
	events := map[string]int{}
	c := NewResponseCache(10)
	c.SetEventHook(func(e string) { events[e]++ })

	c.Put("a", novaVoice, []byte{1})
	c.Get("a", novaVoice)
	c.Get("zzz", novaVoice)
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("Len = %d after Clear", c.Len())
	}
	if events["hit"] != 1 || events["miss"] != 1 || events["clear"] != 1 {
		t.Fatalf("events = %v", events)
	}
}
