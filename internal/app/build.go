package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/mpetrucci/pitchcoach/internal/config"
	"github.com/mpetrucci/pitchcoach/internal/httpapi"
	"github.com/mpetrucci/pitchcoach/internal/observability"
	"github.com/mpetrucci/pitchcoach/internal/session"
	"github.com/mpetrucci/pitchcoach/internal/transcript"
	"github.com/mpetrucci/pitchcoach/internal/voice"
)

type VoiceInfo struct {
	Provider string
	Detail   string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *voice.Orchestrator
	Store        transcript.Store
	Metrics      *observability.Metrics
	Voice        VoiceInfo

	// Cleanup should be called on shutdown to release external resources (DB etc).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}

	voiceSetup, err := resolveVoiceProvider(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Ensure API handlers report which backend is active.
	cfg.VoiceProvider = voiceSetup.resolvedProvider

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	cache := voice.NewResponseCache(cfg.CacheCapacity)

	ttsFormat := cfg.TTSFormat
	if strings.EqualFold(cfg.DeviceMode, "local") {
		// Host speakers take raw PCM; browsers decode compressed audio.
		ttsFormat = "pcm"
	}

	orchestrator := voice.NewOrchestrator(sessions, voiceSetup.provider, cache, store, metrics, voice.Options{
		MinSegmentBytes:      cfg.MinSegmentBytes,
		TTSFormat:            ttsFormat,
		CompletionRetryDelay: cfg.CompletionRetryDelay,
		SynthesisRetryDelay:  cfg.SynthesisRetryDelay,
		RecaptureDelay:       cfg.RecaptureDelay,
		PlaybackSettleDelay:  cfg.PlaybackSettleDelay,
	})

	api := httpapi.New(cfg, sessions, orchestrator, store, metrics)

	cleanup := func() error {
		var errs []string
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Store:        store,
		Metrics:      metrics,
		Voice: VoiceInfo{
			Provider: cfg.VoiceProvider,
			Detail:   voiceSetup.detail,
		},
		Cleanup: cleanup,
	}, nil
}
