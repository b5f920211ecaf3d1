package app

import (
	"fmt"
	"strings"

	"github.com/mpetrucci/pitchcoach/internal/config"
	"github.com/mpetrucci/pitchcoach/internal/voice"
)

type voiceSetup struct {
	provider         voice.Provider
	resolvedProvider string
	detail           string
}

func resolveVoiceProvider(cfg config.Config) (voiceSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if mode == "" {
		mode = "auto"
	}

	openAI := func() voiceSetup {
		p := voice.NewOpenAIProvider(voice.OpenAIOptions{
			APIKey:          cfg.OpenAIAPIKey,
			ChatModel:       cfg.ChatModel,
			ChatMaxTokens:   cfg.ChatMaxTokens,
			ChatTemperature: cfg.ChatTemperature,
			STTModel:        cfg.STTModel,
			TTSModel:        cfg.TTSModel,
		})
		return voiceSetup{
			provider:         p,
			resolvedProvider: "openai",
			detail:           fmt.Sprintf("openai (%s, %s, %s)", cfg.STTModel, cfg.ChatModel, cfg.TTSModel),
		}
	}

	mock := func(detail string) voiceSetup {
		return voiceSetup{
			provider:         voice.NewMockProvider(),
			resolvedProvider: "mock",
			detail:           detail,
		}
	}

	switch mode {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return voiceSetup{}, fmt.Errorf("VOICE_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
		return openAI(), nil
	case "mock":
		return mock("mock"), nil
	case "auto":
		if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
			return openAI(), nil
		}
		return mock("mock (no openai key)"), nil
	default:
		return voiceSetup{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected auto|openai|mock)", cfg.VoiceProvider)
	}
}
