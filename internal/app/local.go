package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mpetrucci/pitchcoach/internal/audio"
	"github.com/mpetrucci/pitchcoach/internal/persona"
	"github.com/mpetrucci/pitchcoach/internal/protocol"
)

// RunLocal drives one rehearsal session over the host microphone and
// speakers instead of a browser websocket. Commands are read line by line
// from in: plain text is sent as a typed response, /record arms the mic,
// /stop interrupts the current turn, /auto on|off toggles hands-free mode.
func RunLocal(ctx context.Context, b *BuildResult, personaID string, in io.Reader) error {
	per, err := persona.Lookup(personaID)
	if err != nil {
		return fmt.Errorf("unknown persona %q: %w", personaID, err)
	}

	devices, err := audio.NewLocalDevices(b.Config.MinSegmentBytes)
	if err != nil {
		return fmt.Errorf("local audio init failed: %w", err)
	}
	defer devices.Close()

	sess := b.Sessions.Create(per.ID)
	b.Metrics.ActiveSessions.Set(float64(b.Sessions.ActiveCount()))
	b.Metrics.SessionEvents.WithLabelValues("created").Inc()
	log.Printf("rehearsing with %s (%s), session %s", per.Name, per.Role, sess.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan any, 16)
	outbound := make(chan any, 64)

	runDone := make(chan error, 1)
	go func() {
		runDone <- b.Orchestrator.RunConnection(ctx, sess, per, inbound, devices.Capture, devices.Playback, outbound)
	}()

	go func() {
		for msg := range outbound {
			switch m := msg.(type) {
			case protocol.TurnAppended:
				if m.Speaker == "rep" {
					log.Printf("you: %s", m.Text)
				} else {
					log.Printf("%s: %s", per.Name, m.Text)
				}
			case protocol.TranscriptReady:
				log.Printf("transcript (edit and send): %s", m.Text)
			case protocol.StatusChanged:
				log.Printf("[%s]", m.Phase)
			case protocol.ErrorEvent:
				log.Printf("error: %s", m.Detail)
			}
		}
	}()

	go func() {
		defer close(inbound)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			msg, quit := parseLocalCommand(sess.ID, line)
			if quit {
				cancel()
				return
			}
			select {
			case <-ctx.Done():
				return
			case inbound <- msg:
			}
		}
		cancel()
	}()

	select {
	case <-ctx.Done():
	case err := <-runDone:
		close(outbound)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	err = <-runDone
	close(outbound)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseLocalCommand(sessionID, line string) (protocol.ClientControl, bool) {
	msg := protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
	}
	switch {
	case line == "/quit" || line == "/exit":
		return msg, true
	case line == "/record":
		msg.Action = protocol.ActionStartCapture
	case line == "/stop":
		msg.Action = protocol.ActionStop
	case line == "/auto on" || line == "/auto off":
		enabled := strings.HasSuffix(line, "on")
		msg.Action = protocol.ActionSetAutoMode
		msg.Enabled = &enabled
	default:
		msg.Action = protocol.ActionTypedText
		msg.Text = line
	}
	return msg, false
}
