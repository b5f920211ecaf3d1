package persona

import (
	"strings"
	"testing"
)

func TestLookupKnown(t *testing.T) {
	p, err := Lookup("sarah-chen")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Name != "Dr. Sarah Chen" {
		t.Fatalf("name = %q", p.Name)
	}
	if p.Voice.VoiceID != "nova" || p.Voice.Speed != 1.0 {
		t.Fatalf("voice = %+v", p.Voice)
	}
	if p.Greeting == "" || p.SystemPrompt == "" {
		t.Fatalf("greeting/prompt must be populated")
	}
}

func TestLookupTrimsWhitespace(t *testing.T) {
	if _, err := Lookup("  emma-patel "); err != nil {
		t.Fatalf("Lookup with padding: %v", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("nobody"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListOrderedByID(t *testing.T) {
	all := List()
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("list not ordered: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
}

func TestGreetingsIntroduceTheSpeaker(t *testing.T) {
	for _, p := range List() {
		if !strings.HasPrefix(p.Greeting, "Hi, I'm "+p.Name+". ") {
			t.Fatalf("%s greeting does not open with an introduction: %q", p.ID, p.Greeting)
		}
	}
}

func TestVoiceForFallsBack(t *testing.T) {
	v := VoiceFor("missing")
	if v != DefaultVoice {
		t.Fatalf("voice = %+v, want default", v)
	}
	if got := VoiceFor("michael-rodriguez"); got.VoiceID != "echo" || got.Speed != 0.95 {
		t.Fatalf("voice = %+v", got)
	}
}
