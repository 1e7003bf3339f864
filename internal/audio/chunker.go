package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DefaultMaxChunkBytes is the per-request size limit of hosted Whisper APIs.
const DefaultMaxChunkBytes int64 = 25 * 1024 * 1024

// ChunkDuration converts a byte budget into a playback duration assuming
// encoded size grows linearly with duration. Variable bitrate sources and
// container overhead break that assumption, so a chunk may still exceed
// maxBytes once re-encoded.
func ChunkDuration(total time.Duration, maxBytes, fileSize int64) time.Duration {
	if total <= 0 || maxBytes <= 0 || fileSize <= 0 || fileSize <= maxBytes {
		return total
	}
	return time.Duration(float64(total) * float64(maxBytes) / float64(fileSize))
}

// splitTolerance is the fraction of a chunk below which a trailing
// remainder is treated as rounding error and kept in the previous segment.
const splitTolerance = 1e-6

// Split slices pcm into consecutive segments of chunk length; the last
// segment may be shorter. Segments share the backing array of pcm.
func Split(pcm PCM, chunk time.Duration) []Segment {
	n := len(pcm.Samples)
	if n == 0 {
		return nil
	}

	per := float64(n)
	if chunk > 0 && pcm.SampleRate > 0 {
		if p := chunk.Seconds() * float64(pcm.SampleRate); p >= 1 && p < per {
			per = p
		}
	}

	count := max(int(math.Ceil(float64(n)/per-splitTolerance)), 1)
	segments := make([]Segment, 0, count)
	start := 0
	for i := 1; i <= count; i++ {
		end := n
		if i < count {
			end = int(math.Round(float64(i) * per))
		}
		segments = append(segments, Segment{
			Index: len(segments),
			Start: pcm.offset(start),
			PCM:   PCM{Samples: pcm.Samples[start:end:end], SampleRate: pcm.SampleRate},
		})
		start = end
	}
	return segments
}

// Chunker decodes an audio file and splits it by a byte budget.
type Chunker struct {
	// Transcoder converts formats without a Go decoder to WAV first. Optional.
	Transcoder Transcoder
	Logger     *zap.Logger
}

func (c *Chunker) Split(ctx context.Context, path string, maxBytes int64) ([]Segment, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}

	pcm, err := c.decode(ctx, path)
	if err != nil {
		return nil, err
	}

	total := pcm.Duration()
	chunk := ChunkDuration(total, maxBytes, info.Size())
	segments := Split(pcm, chunk)

	logger.Debug("split audio",
		zap.String("audio", path),
		zap.String("size", humanize.IBytes(uint64(info.Size()))),
		zap.String("budget", humanize.IBytes(uint64(maxBytes))),
		zap.Duration("total", total),
		zap.Duration("chunk", chunk),
		zap.Int("chunks", len(segments)),
	)
	return segments, nil
}

func (c *Chunker) decode(ctx context.Context, path string) (PCM, error) {
	if CanDecode(path) || c.Transcoder == nil {
		pcm, err := Decode(path)
		if err != nil {
			return PCM{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		return pcm, nil
	}

	tmp, err := os.CreateTemp("", "tubescribe-decode-*.wav")
	if err != nil {
		return PCM{}, fmt.Errorf("create temp wav: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.Transcoder.Transcode(ctx, path, tmpPath); err != nil {
		return PCM{}, err
	}

	pcm, err := Decode(tmpPath)
	if err != nil {
		return PCM{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return pcm, nil
}
