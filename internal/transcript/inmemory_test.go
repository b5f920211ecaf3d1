package transcript

import (
	"context"
	"testing"
)

func TestInMemoryStoreAppendAndList(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, text := range []string{"hello", "hi there", "tell me more"} {
		err := s.Append(ctx, Entry{
			SessionID: "s1",
			PersonaID: "sarah-chen",
			Speaker:   SpeakerRep,
			Text:      text,
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.SessionEntries(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("SessionEntries() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Text != "hello" || got[2].Text != "tell me more" {
		t.Fatalf("entries out of order: %+v", got)
	}
	for _, e := range got {
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Fatalf("entry missing id/timestamp: %+v", e)
		}
	}
}

func TestInMemoryStoreLimitReturnsNewest(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if err := s.Append(ctx, Entry{SessionID: "s1", Speaker: SpeakerPersona, Text: text}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.SessionEntries(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("SessionEntries() error = %v", err)
	}
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "c" {
		t.Fatalf("got %+v, want newest two in order", got)
	}
}

func TestInMemoryStoreUnknownSession(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.SessionEntries(context.Background(), "missing", 10)
	if err != nil {
		t.Fatalf("SessionEntries() error = %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}
