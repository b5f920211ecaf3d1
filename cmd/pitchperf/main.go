package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpetrucci/pitchcoach/internal/audio"
	"github.com/mpetrucci/pitchcoach/internal/protocol"
)

type options struct {
	baseURL        string
	personaID      string
	mode           string
	turns          int
	utteranceMS    int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

var defaultPitchLines = []string{
	"Our platform cuts chart review time by forty percent.",
	"The pivotal trial showed significant outcome improvements.",
	"Implementation takes two weeks with no workflow disruption.",
	"Pricing is per provider with volume discounts available.",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pitchperf: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "pitchperf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "PitchCoach base URL")
	flag.StringVar(&cfg.personaID, "persona-id", "sarah-chen", "persona to rehearse against")
	flag.StringVar(&cfg.mode, "mode", "typed", "turn input mode: typed or audio")
	flag.IntVar(&cfg.turns, "turns", 8, "number of turns to replay")
	flag.IntVar(&cfg.utteranceMS, "utterance-ms", 1200, "synthetic utterance length in audio mode")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 200, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 20000, "timeout waiting for reply audio per turn")
	flag.StringVar(&textsRaw, "texts", "", "pitch lines separated by '|' (typed mode)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.mode != "typed" && cfg.mode != "audio" {
		return options{}, fmt.Errorf("mode must be typed or audio")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if cfg.utteranceMS < 300 || cfg.utteranceMS > 15000 {
		return options{}, fmt.Errorf("utterance-ms must be in [300,15000]")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultPitchLines...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty pitch lines")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 45 * time.Second}
	sessionID, err := createSession(ctx, httpClient, cfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = endSession(context.Background(), httpClient, cfg.baseURL, sessionID)
	}()

	if cfg.verbose {
		fmt.Printf("pitchperf: session=%s persona=%s mode=%s turns=%d\n", sessionID, cfg.personaID, cfg.mode, cfg.turns)
	}

	wsURL, err := wsURLForSession(cfg.baseURL, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	// Typed mode does not want the server arming the mic between turns.
	if cfg.mode == "typed" {
		if err := sendAutoMode(conn, sessionID, false); err != nil {
			return fmt.Errorf("disable hands-free mode: %w", err)
		}
	}

	events := make(chan wsEvent, 64)
	readErrCh := make(chan error, 1)
	go readLoop(conn, events, readErrCh, cfg.verbose)

	// The greeting is voiced before any turn; ack it so the loop settles.
	if err := awaitEvent(events, readErrCh, cfg.turnTimeout, string(protocol.TypePlayAudio)); err != nil {
		return fmt.Errorf("await greeting audio: %w", err)
	}
	if err := sendPlaybackFinished(conn, sessionID); err != nil {
		return fmt.Errorf("ack greeting playback: %w", err)
	}
	if cfg.mode == "typed" {
		if err := awaitIdle(events, readErrCh, cfg.turnTimeout); err != nil {
			return fmt.Errorf("await idle after greeting: %w", err)
		}
	}

	clip := synthUtterance(cfg.utteranceMS)
	var latencies []time.Duration

	for i := 0; i < cfg.turns; i++ {
		select {
		case err := <-readErrCh:
			return fmt.Errorf("ws read: %w", err)
		default:
		}

		start := time.Now()
		if cfg.mode == "audio" {
			if err := awaitEvent(events, readErrCh, cfg.turnTimeout, string(protocol.TypeCaptureStart)); err != nil {
				return fmt.Errorf("turn %d await capture_start: %w", i+1, err)
			}
			start = time.Now()
			if err := sendSegment(conn, sessionID, clip); err != nil {
				return fmt.Errorf("turn %d send audio: %w", i+1, err)
			}
		} else {
			text := cfg.texts[i%len(cfg.texts)]
			if err := sendTypedText(conn, sessionID, text); err != nil {
				return fmt.Errorf("turn %d send text: %w", i+1, err)
			}
		}

		if err := awaitEvent(events, readErrCh, cfg.turnTimeout, string(protocol.TypePlayAudio)); err != nil {
			return fmt.Errorf("turn %d await reply audio: %w", i+1, err)
		}
		latency := time.Since(start)
		latencies = append(latencies, latency)

		if err := sendPlaybackFinished(conn, sessionID); err != nil {
			return fmt.Errorf("turn %d ack playback: %w", i+1, err)
		}
		if cfg.mode == "typed" {
			if err := awaitIdle(events, readErrCh, cfg.turnTimeout); err != nil {
				return fmt.Errorf("turn %d await idle: %w", i+1, err)
			}
		}
		if cfg.verbose {
			fmt.Printf("pitchperf: turn %d/%d reply in %s\n", i+1, cfg.turns, latency.Round(time.Millisecond))
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	printSummary(latencies)
	return nil
}

type wsEvent struct {
	Type   string
	Phase  string
	Detail string
}

func readLoop(conn *websocket.Conn, events chan<- wsEvent, errCh chan<- error, verbose bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		var env struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Speaker string `json:"speaker,omitempty"`
			Phase   string `json:"phase,omitempty"`
			Detail  string `json:"detail,omitempty"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if verbose && env.Type == string(protocol.TypeTurnAppended) && env.Speaker == "persona" {
			fmt.Printf("pitchperf: persona said %q\n", env.Text)
		}
		if env.Type == string(protocol.TypeErrorEvent) {
			errCh <- fmt.Errorf("server error: %s", env.Detail)
			return
		}
		events <- wsEvent{Type: env.Type, Phase: env.Phase, Detail: env.Detail}
	}
}

func awaitEvent(events <-chan wsEvent, errCh <-chan error, timeout time.Duration, wantType string) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-deadline.C:
			return fmt.Errorf("timed out after %s", timeout)
		case ev := <-events:
			if ev.Type == wantType {
				return nil
			}
		}
	}
}

// awaitIdle blocks until the orchestrator reports it is ready for the
// next turn. Typed input sent before that is dropped server-side.
func awaitIdle(events <-chan wsEvent, errCh <-chan error, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-deadline.C:
			return fmt.Errorf("timed out after %s", timeout)
		case ev := <-events:
			if ev.Type == string(protocol.TypeStatusChanged) && ev.Phase == "idle" {
				return nil
			}
		}
	}
}

func createSession(ctx context.Context, client *http.Client, cfg options) (string, error) {
	payload, err := json.Marshal(map[string]string{"persona_id": cfg.personaID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/v1/rehearsal/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("response missing session_id")
	}
	return out.SessionID, nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/rehearsal/session/"+sessionID+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/v1/rehearsal/session/ws"
	u.RawQuery = url.Values{"session_id": {sessionID}}.Encode()
	return u.String(), nil
}

// synthUtterance builds a spoken-band test tone wrapped as WAV so STT
// backends accept it as audio even though it carries no speech.
func synthUtterance(durationMS int) []byte {
	const sampleRate = 16000
	samples := sampleRate * durationMS / 1000
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		t := float64(i) / sampleRate
		v := int16(6000 * math.Sin(2*math.Pi*220*t))
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return audio.EncodeWAVPCM16LE(pcm, sampleRate, 1)
}

func sendSegment(conn *websocket.Conn, sessionID string, wav []byte) error {
	return conn.WriteJSON(protocol.ClientAudioSegment{
		Type:        protocol.TypeClientAudioSegment,
		SessionID:   sessionID,
		AudioBase64: base64.StdEncoding.EncodeToString(wav),
		MIMEType:    "audio/wav",
	})
}

func sendTypedText(conn *websocket.Conn, sessionID, text string) error {
	return conn.WriteJSON(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionTypedText,
		Text:      text,
	})
}

func sendAutoMode(conn *websocket.Conn, sessionID string, enabled bool) error {
	return conn.WriteJSON(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionSetAutoMode,
		Enabled:   &enabled,
	})
}

func sendPlaybackFinished(conn *websocket.Conn, sessionID string) error {
	return conn.WriteJSON(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionPlaybackFinished,
	})
}

func printSummary(latencies []time.Duration) {
	if len(latencies) == 0 {
		fmt.Println("pitchperf: no turns completed")
		return
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	p95 := sorted[(len(sorted)*95)/100]
	fmt.Printf("pitchperf: turns=%d avg=%s p50=%s p95=%s max=%s\n",
		len(sorted),
		(total / time.Duration(len(sorted))).Round(time.Millisecond),
		sorted[len(sorted)/2].Round(time.Millisecond),
		p95.Round(time.Millisecond),
		sorted[len(sorted)-1].Round(time.Millisecond),
	)
}
