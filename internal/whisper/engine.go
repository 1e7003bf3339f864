package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	EngineLocal  = "local"
	EngineOpenAI = "openai"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// Engine turns one audio file into text. Implementations hold their model
// for the lifetime of the value, so one Engine serves a whole run.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

func ValidateEngineName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "", EngineLocal:
		return EngineLocal, nil
	case EngineOpenAI:
		return EngineOpenAI, nil
	default:
		return "", fmt.Errorf("unknown engine %q (expected %s or %s)", name, EngineLocal, EngineOpenAI)
	}
}
