package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fmueller/tubescribe/internal/audio"
	"go.uber.org/zap"
)

// DefaultSilenceDBFS is the level below which a chunk counts as silent.
const DefaultSilenceDBFS = -50.0

// Engine turns one audio file into text.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Splitter decodes an audio file into segments sized for maxBytes.
type Splitter interface {
	Split(ctx context.Context, path string, maxBytes int64) ([]audio.Segment, error)
}

type Transcriber struct {
	Engine   Engine
	Splitter Splitter
	Encoder  audio.Encoder
	// MaxBytes is the largest file sent to the engine in one call.
	MaxBytes int64

	SkipSilent  bool
	SilenceDBFS float64

	Logger *zap.Logger
	Status func(string)
}

// Transcribe returns the transcript of the file at path. Files within
// MaxBytes go to the engine as they are; larger files are split and the
// chunk transcripts joined with a single space.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	if t.Engine == nil {
		return "", errors.New("no transcription engine configured")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat audio file: %w", err)
	}

	size := info.Size()
	t.status(fmt.Sprintf("File size: %.2f MB", float64(size)/(1024*1024)))

	maxBytes := t.maxBytes()
	if size <= maxBytes {
		t.logger().Debug("transcribing file directly", zap.String("audio", path), zap.String("size", humanize.IBytes(uint64(size))))
		text, err := t.Engine.Transcribe(ctx, path)
		if err != nil {
			return "", fmt.Errorf("transcribe %s: %w", filepath.Base(path), err)
		}
		return text, nil
	}

	t.status(fmt.Sprintf("File is larger than %s, splitting into chunks...", humanize.IBytes(uint64(maxBytes))))
	return t.transcribeChunks(ctx, path, maxBytes)
}

func (t *Transcriber) transcribeChunks(ctx context.Context, path string, maxBytes int64) (string, error) {
	if t.Splitter == nil || t.Encoder == nil {
		return "", errors.New("chunked transcription needs a splitter and an encoder")
	}

	segments, err := t.Splitter.Split(ctx, path, maxBytes)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "tubescribe-chunks-*")
	if err != nil {
		return "", fmt.Errorf("create chunk directory: %w", err)
	}
	defer os.RemoveAll(dir)

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if t.SkipSilent {
			if levels := seg.Levels(); levels.Silent(t.SilenceDBFS) {
				t.logger().Info("skipping silent chunk",
					zap.Stringer("chunk", seg),
					zap.Float64("rms_dbfs", levels.RMSdBFS),
					zap.Float64("peak_dbfs", levels.PeakdBFS),
					zap.Float64("threshold_dbfs", t.SilenceDBFS),
				)
				continue
			}
		}

		chunkPath := filepath.Join(dir, fmt.Sprintf("chunk_%d%s", seg.Index, t.Encoder.Ext()))
		if err := t.Encoder.Encode(ctx, seg.PCM, chunkPath); err != nil {
			return "", fmt.Errorf("export chunk %d: %w", seg.Index, err)
		}
		if chunkInfo, err := os.Stat(chunkPath); err == nil && chunkInfo.Size() > maxBytes {
			t.logger().Warn("chunk exceeds size budget", zap.Stringer("chunk", seg), zap.String("size", humanize.IBytes(uint64(chunkInfo.Size()))))
		}

		t.status(fmt.Sprintf("Transcribing chunk %d of %d...", seg.Index+1, len(segments)))
		text, err := t.Engine.Transcribe(ctx, chunkPath)
		if err != nil {
			return "", fmt.Errorf("transcribe chunk %d: %w", seg.Index, err)
		}
		t.logger().Debug("chunk transcribed", zap.Stringer("chunk", seg), zap.Int("chars", len(text)))
		texts = append(texts, text)
	}

	return strings.Join(texts, " "), nil
}

func (t *Transcriber) maxBytes() int64 {
	if t.MaxBytes <= 0 {
		return audio.DefaultMaxChunkBytes
	}
	return t.MaxBytes
}

func (t *Transcriber) status(line string) {
	if t.Status != nil {
		t.Status(line)
	}
}

func (t *Transcriber) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
