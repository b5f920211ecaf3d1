package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mpetrucci/pitchcoach/internal/audio"
	"github.com/mpetrucci/pitchcoach/internal/reliability"
)

// OpenAIOptions tunes the OpenAI-backed speech pipeline.
type OpenAIOptions struct {
	APIKey           string
	ChatModel        string
	ChatMaxTokens    int
	ChatTemperature  float64
	PresencePenalty  float64
	FrequencyPenalty float64
	STTModel         string
	TTSModel         string
}

// OpenAIProvider implements transcription, completion and synthesis against
// the OpenAI API.
type OpenAIProvider struct {
	client *openai.Client
	opts   OpenAIOptions
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	if opts.ChatModel == "" {
		opts.ChatModel = "gpt-3.5-turbo-0125"
	}
	if opts.ChatMaxTokens <= 0 {
		opts.ChatMaxTokens = 500
	}
	if opts.ChatTemperature <= 0 {
		opts.ChatTemperature = 0.7
	}
	if opts.PresencePenalty == 0 {
		opts.PresencePenalty = 0.6
	}
	if opts.FrequencyPenalty == 0 {
		opts.FrequencyPenalty = 0.3
	}
	if opts.STTModel == "" {
		opts.STTModel = openai.Whisper1
	}
	if opts.TTSModel == "" {
		opts.TTSModel = string(openai.TTSModel1)
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts.APIKey),
		opts:   opts,
	}
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, segment audio.Segment) (string, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.opts.STTModel,
		FilePath: segmentFilename(segment.MIME),
		Reader:   bytes.NewReader(segment.Data),
	})
	if err != nil {
		return "", classifyAPIError("transcribe", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})
	for _, t := range req.Turns {
		role := openai.ChatMessageRoleUser
		if t.Speaker == SpeakerPersona {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            p.opts.ChatModel,
		Messages:         messages,
		Temperature:      float32(p.opts.ChatTemperature),
		MaxTokens:        p.opts.ChatMaxTokens,
		PresencePenalty:  float32(p.opts.PresencePenalty),
		FrequencyPenalty: float32(p.opts.FrequencyPenalty),
	})
	if err != nil {
		return "", classifyAPIError("complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("complete: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.opts.TTSModel),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Voice.VoiceID),
		ResponseFormat: speechFormat(req.Format),
		Speed:          req.Voice.Speed,
	})
	if err != nil {
		return nil, classifyAPIError("synthesize", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("synthesize: read audio: %w", err)
	}
	return data, nil
}

func segmentFilename(mime string) string {
	switch mime {
	case "audio/wav", "audio/x-wav":
		return "segment.wav"
	case "audio/mpeg", "audio/mp3":
		return "segment.mp3"
	case "audio/mp4":
		return "segment.mp4"
	case "audio/ogg":
		return "segment.ogg"
	default:
		return "segment.webm"
	}
}

func speechFormat(format string) openai.SpeechResponseFormat {
	switch format {
	case "pcm":
		return openai.SpeechResponseFormatPcm
	case "wav":
		return openai.SpeechResponseFormatWav
	case "opus":
		return openai.SpeechResponseFormatOpus
	default:
		return openai.SpeechResponseFormatMp3
	}
}

// MIMEForFormat reports the content type playback should assume for a
// synthesis output format.
func MIMEForFormat(format string) string {
	switch format {
	case "pcm":
		return "audio/pcm"
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

func classifyAPIError(stage string, err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	switch {
	case apiErr.HTTPStatusCode == 429:
		return fmt.Errorf("%s: %w: %v", stage, reliability.ErrRateLimited, err)
	case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
		return fmt.Errorf("%s: %w: %v", stage, reliability.ErrAuth, err)
	case reliability.IsRetryableHTTPStatus(apiErr.HTTPStatusCode):
		return fmt.Errorf("%s: %w: %v", stage, reliability.ErrRateLimited, err)
	default:
		return fmt.Errorf("%s: %w", stage, err)
	}
}
