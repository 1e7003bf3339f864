package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Encoder writes a decoded segment back to disk.
type Encoder interface {
	// Ext is the file extension, including the dot, of files produced by Encode.
	Ext() string
	Encode(ctx context.Context, pcm PCM, path string) error
}

// NewEncoder returns an MP3 encoder backed by ffmpeg when ffmpeg is on PATH.
// Otherwise chunks are written as WAV and converted to MP3 with transcoder,
// or left as WAV when transcoder is nil.
func NewEncoder(transcoder Transcoder) Encoder {
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return &FFmpegEncoder{Executable: path}
	}
	if transcoder != nil {
		return &TranscodingEncoder{Transcoder: transcoder}
	}
	return WAVEncoder{}
}

type WAVEncoder struct{}

func (WAVEncoder) Ext() string { return ".wav" }

func (WAVEncoder) Encode(_ context.Context, pcm PCM, path string) error {
	if pcm.SampleRate <= 0 {
		return fmt.Errorf("encode wav %s: invalid sample rate %d", path, pcm.SampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	encoder := wav.NewEncoder(f, pcm.SampleRate, 16, 1, 1)
	data := make([]int, len(pcm.Samples))
	for i, s := range pcm.Samples {
		data[i] = int(s)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: pcm.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

// TranscodingEncoder writes a temporary WAV file and converts it to MP3, so
// exported chunks stay close to the size of the compressed source.
type TranscodingEncoder struct {
	Transcoder Transcoder
}

func (*TranscodingEncoder) Ext() string { return ".mp3" }

func (e *TranscodingEncoder) Encode(ctx context.Context, pcm PCM, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "encode-*.wav")
	if err != nil {
		return fmt.Errorf("create temp wav: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := (WAVEncoder{}).Encode(ctx, pcm, tmpPath); err != nil {
		return err
	}
	return e.Transcoder.Transcode(ctx, tmpPath, path)
}

// FFmpegEncoder pipes raw PCM into ffmpeg and writes MP3.
type FFmpegEncoder struct {
	Executable string
	// Bitrate is passed to -b:a; defaults to 128k.
	Bitrate string
}

func (*FFmpegEncoder) Ext() string { return ".mp3" }

func (e *FFmpegEncoder) Encode(ctx context.Context, pcm PCM, path string) error {
	bitrate := e.Bitrate
	if bitrate == "" {
		bitrate = "128k"
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(pcm.SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		path,
	}

	cmd := exec.CommandContext(ctx, e.Executable, args...)
	cmd.Stdin = bytes.NewReader(pcm.Bytes())
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("encode mp3 %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
