package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mpetrucci/pitchcoach/internal/config"
	"github.com/mpetrucci/pitchcoach/internal/observability"
	"github.com/mpetrucci/pitchcoach/internal/session"
	"github.com/mpetrucci/pitchcoach/internal/transcript"
)

func newTestServer(t *testing.T, label string) (*Server, *session.Manager, *transcript.InMemoryStore) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		VoiceProvider:            "mock",
		DeviceMode:               "ws",
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	store := transcript.NewInMemoryStore()
	metrics := observability.NewMetrics("test_httpapi_" + label + "_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
	return New(cfg, sessions, nil, store, metrics), sessions, store
}

func TestCreateAndEndSession(t *testing.T) {
	srv, _, _ := newTestServer(t, "create")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"persona_id": "michael-rodriguez"})
	res, err := http.Post(ts.URL+"/v1/rehearsal/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	if created["persona_id"] != "michael-rodriguez" {
		t.Fatalf("persona_id = %v, want michael-rodriguez", created["persona_id"])
	}
	if created["auto_mode"] != true {
		t.Fatalf("auto_mode = %v, want true", created["auto_mode"])
	}
	greeting, _ := created["greeting"].(string)
	if greeting == "" {
		t.Fatalf("missing greeting in create response: %+v", created)
	}

	endRes, err := http.Post(ts.URL+"/v1/rehearsal/session/"+sessionID+"/end", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
}

func TestCreateSessionDefaultsPersona(t *testing.T) {
	srv, _, _ := newTestServer(t, "defaultpersona")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/v1/rehearsal/session", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created["persona_id"] != "sarah-chen" {
		t.Fatalf("persona_id = %v, want sarah-chen", created["persona_id"])
	}
}

func TestCreateSessionUnknownPersona(t *testing.T) {
	srv, _, _ := newTestServer(t, "unknownpersona")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"persona_id": "nobody"})
	res, err := http.Post(ts.URL+"/v1/rehearsal/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestListPersonas(t *testing.T) {
	srv, _, _ := newTestServer(t, "personas")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/personas")
	if err != nil {
		t.Fatalf("GET /v1/personas error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload struct {
		Personas []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Role  string `json:"role"`
			Voice struct {
				VoiceID string  `json:"voice_id"`
				Speed   float64 `json:"speed"`
			} `json:"voice"`
		} `json:"personas"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Personas) != 4 {
		t.Fatalf("persona count = %d, want 4", len(payload.Personas))
	}
	if payload.Personas[0].ID != "emma-patel" {
		t.Fatalf("first persona id = %q, want emma-patel (sorted)", payload.Personas[0].ID)
	}
	for _, p := range payload.Personas {
		if p.Name == "" || p.Role == "" || p.Voice.VoiceID == "" {
			t.Fatalf("persona %q missing name, role, or voice", p.ID)
		}
	}
}

func TestSessionTranscript(t *testing.T) {
	srv, sessions, store := newTestServer(t, "transcript")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	sess := sessions.Create("sarah-chen")
	ctx := context.Background()
	if err := store.Append(ctx, transcript.Entry{
		SessionID: sess.ID,
		PersonaID: "sarah-chen",
		Speaker:   transcript.SpeakerRep,
		Text:      "Our device cuts prep time in half.",
	}); err != nil {
		t.Fatalf("append entry: %v", err)
	}
	if err := store.Append(ctx, transcript.Entry{
		SessionID: sess.ID,
		PersonaID: "sarah-chen",
		Speaker:   transcript.SpeakerPersona,
		Text:      "What does the evidence say?",
	}); err != nil {
		t.Fatalf("append entry: %v", err)
	}

	res, err := http.Get(ts.URL + "/v1/rehearsal/session/" + sess.ID + "/transcript")
	if err != nil {
		t.Fatalf("GET transcript error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload struct {
		SessionID string             `json:"session_id"`
		Entries   []transcript.Entry `json:"entries"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.SessionID != sess.ID {
		t.Fatalf("session_id = %q, want %q", payload.SessionID, sess.ID)
	}
	if len(payload.Entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(payload.Entries))
	}
	if payload.Entries[0].Speaker != transcript.SpeakerRep {
		t.Fatalf("first speaker = %q, want %q", payload.Entries[0].Speaker, transcript.SpeakerRep)
	}

	missingRes, err := http.Get(ts.URL + "/v1/rehearsal/session/does-not-exist/transcript")
	if err != nil {
		t.Fatalf("GET missing transcript error = %v", err)
	}
	defer missingRes.Body.Close()
	if missingRes.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session status = %d, want %d", missingRes.StatusCode, http.StatusNotFound)
	}

	badRes, err := http.Get(ts.URL + "/v1/rehearsal/session/" + sess.ID + "/transcript?limit=-3")
	if err != nil {
		t.Fatalf("GET transcript bad limit error = %v", err)
	}
	defer badRes.Body.Close()
	if badRes.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want %d", badRes.StatusCode, http.StatusBadRequest)
	}
}

func TestPerfLatency(t *testing.T) {
	srv, _, _ := newTestServer(t, "perf")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	srv.metrics.ObserveTurnStage("transcribe", 420*time.Millisecond)
	srv.metrics.ObserveTurnStage("complete", 900*time.Millisecond)

	res, err := http.Get(ts.URL + "/v1/perf/latency")
	if err != nil {
		t.Fatalf("GET /v1/perf/latency error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(res.Body); err != nil {
		t.Fatalf("reading body failed: %v", err)
	}
	if !strings.Contains(body.String(), "transcribe") {
		t.Fatalf("latency payload missing transcribe stage: %s", body.String())
	}
}

func TestUIRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t, "ui")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rootRes, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer rootRes.Body.Close()
	if rootRes.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", rootRes.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := rootRes.Header.Get("Location"); got != "/ui/" {
		t.Fatalf("GET / location = %q, want %q", got, "/ui/")
	}

	uiRes, err := http.Get(ts.URL + "/ui/")
	if err != nil {
		t.Fatalf("GET /ui/ error = %v", err)
	}
	defer uiRes.Body.Close()
	if uiRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /ui/ status = %d, want %d", uiRes.StatusCode, http.StatusOK)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(uiRes.Body); err != nil {
		t.Fatalf("reading /ui/ body failed: %v", err)
	}
	if !strings.Contains(body.String(), "rehearsal console") {
		t.Fatalf("GET /ui/ body missing expected content")
	}
}

func TestSessionWSRequiresSessionID(t *testing.T) {
	srv, _, _ := newTestServer(t, "wsmissing")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/rehearsal/session/ws")
	if err != nil {
		t.Fatalf("GET ws without session_id error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, "health")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
		var payload map[string]any
		if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
			res.Body.Close()
			t.Fatalf("decode %s response: %v", path, err)
		}
		res.Body.Close()
		if payload["voice_provider"] != "mock" {
			t.Fatalf("%s voice_provider = %v, want mock", path, payload["voice_provider"])
		}
	}
}
