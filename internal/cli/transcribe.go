package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fmueller/tubescribe/internal/audio"
	"github.com/fmueller/tubescribe/internal/download"
	"github.com/fmueller/tubescribe/internal/transcribe"
	"github.com/fmueller/tubescribe/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := app.transcribeFn(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.printTranscript(transcript)
			return nil
		},
	}
}

func (a *appState) transcribeAudio(ctx context.Context, audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	engine, err := a.newEngine(ctx)
	if err != nil {
		return "", err
	}
	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("engine", engine.Name()), zap.String("language", a.language))

	transcoder := audio.NewTranscoder(a.log())
	transcriber := &transcribe.Transcriber{
		Engine:      spinnerEngine{Engine: engine, enabled: a.progressEnabled(), logger: a.log()},
		Splitter:    &audio.Chunker{Transcoder: transcoder, Logger: a.log()},
		Encoder:     audio.NewEncoder(transcoder),
		MaxBytes:    a.chunkBudget(),
		SkipSilent:  a.skipSilent,
		SilenceDBFS: a.silenceDBFS,
		Logger:      a.log(),
		Status:      a.console().Status,
	}
	return transcriber.Transcribe(ctx, audioPath)
}

// newEngine builds the configured engine once per run. The local engine
// makes sure its model is on disk first.
func (a *appState) newEngine(ctx context.Context) (whisper.Engine, error) {
	switch a.engine {
	case whisper.EngineOpenAI:
		engine, err := whisper.NewOpenAIEngine(whisper.OpenAIOptions{
			BaseURL:  a.openAIBaseURL,
			Model:    a.openAIModel,
			Language: a.language,
			Logger:   a.log(),
		})
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		model, err := a.ensureModelAvailable(ctx)
		if err != nil {
			return nil, err
		}
		engine, err := whisper.NewCLIEngine(model.Path, a.language, a.log())
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func (a *appState) chunkBudget() int64 {
	if a.maxChunkBytes <= 0 {
		return audio.DefaultMaxChunkBytes
	}
	return a.maxChunkBytes
}

func (a *appState) ensureModelAvailable(ctx context.Context) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(a.model, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.autoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `tubescribe setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading",
		zap.String("model", resolved.Name),
		zap.String("size", humanize.IBytes(uint64(resolved.SizeBytes))),
		zap.String("destination", resolved.Path),
	)
	if err := download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		ExpectedSize:   resolved.SizeBytes,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}); err != nil {
		return whisper.ResolvedModel{}, fmt.Errorf("download model %q: %w", resolved.Name, err)
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
