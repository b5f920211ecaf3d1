package session

import (
	"context"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("sarah-chen")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if !s.AutoMode {
		t.Fatalf("new sessions should start in auto mode")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PersonaID != "sarah-chen" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
}

func TestManagerSetAutoMode(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("emma-patel")
	if err := m.SetAutoMode(s.ID, false); err != nil {
		t.Fatalf("SetAutoMode() error = %v", err)
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AutoMode {
		t.Fatalf("AutoMode = true, want false")
	}
}

func TestManagerFinishTurnAdvancesCount(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("sarah-chen")
	if err := m.StartTurn(s.ID, "turn-1"); err != nil {
		t.Fatalf("StartTurn() error = %v", err)
	}
	if err := m.FinishTurn(s.ID); err != nil {
		t.Fatalf("FinishTurn() error = %v", err)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ActiveTurnID != "" {
		t.Fatalf("ActiveTurnID = %q, want empty", got.ActiveTurnID)
	}
	if got.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", got.TurnCount)
	}
}

func TestManagerRecordStopClearsTurn(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("sarah-chen")
	if err := m.StartTurn(s.ID, "turn-1"); err != nil {
		t.Fatalf("StartTurn() error = %v", err)
	}
	if err := m.RecordStop(s.ID); err != nil {
		t.Fatalf("RecordStop() error = %v", err)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ActiveTurnID != "" {
		t.Fatalf("ActiveTurnID = %q, want empty", got.ActiveTurnID)
	}
	if got.StopCount != 1 {
		t.Fatalf("StopCount = %d, want 1", got.StopCount)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("sarah-chen")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
}
