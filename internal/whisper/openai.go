package whisper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type OpenAIOptions struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Logger   *zap.Logger
}

// OpenAIEngine sends audio to the hosted Whisper API. Requests above 25 MiB
// are rejected by the service, which is why large files are chunked first.
type OpenAIEngine struct {
	client   *openai.Client
	model    string
	language string
	logger   *zap.Logger
}

func NewOpenAIEngine(opts OpenAIOptions) (*OpenAIEngine, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIEngine{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: opts.Language,
		logger:   logger,
	}, nil
}

func (e *OpenAIEngine) Name() string {
	return "openai/" + e.model
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	req := openai.AudioRequest{
		Model:    e.model,
		FilePath: audioPath,
	}
	if lang := strings.TrimSpace(e.language); lang != "" && lang != "auto" {
		req.Language = lang
	}

	e.logger.Debug("sending audio to transcription API", zap.String("audio", audioPath), zap.String("model", e.model))
	resp, err := e.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcription API %s: %w", filepath.Base(audioPath), err)
	}
	return resp.Text, nil
}
