package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeWAVRoundTripThroughEncoder(t *testing.T) {
	t.Parallel()

	samples := sine(8000, 16000, 0.5)
	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, WAVEncoder{}.Encode(context.Background(), PCM{Samples: samples, SampleRate: 16000}, path))

	pcm, err := Decode(path)
	require.NoError(t, err)
	require.Equal(t, 16000, pcm.SampleRate)
	require.Equal(t, samples, pcm.Samples)
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	t.Parallel()

	// Interleaved L/R frames.
	stereo := []int16{1000, 3000, -2000, -4000, 100, 100}
	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAV(stereo, 8000, 2), 0o644))

	pcm, err := Decode(path)
	require.NoError(t, err)
	require.Equal(t, 8000, pcm.SampleRate)
	require.Equal(t, []int16{2000, -3000, 100}, pcm.Samples)
}

func TestDecodeRejectsInvalidWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not-wav.wav")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := Decode(path)
	require.ErrorIs(t, err, ErrInvalidWAV)
}

func TestDecodeRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	_, err := Decode(filepath.Join(t.TempDir(), "clip.webm"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCanDecode(t *testing.T) {
	t.Parallel()

	require.True(t, CanDecode("a.mp3"))
	require.True(t, CanDecode("A.WAV"))
	require.True(t, CanDecode("b.flac"))
	require.False(t, CanDecode("c.m4a"))
	require.False(t, CanDecode("noext"))
}

func TestScaleTo16(t *testing.T) {
	t.Parallel()

	require.Equal(t, int16(256), scaleTo16(1, 8))
	require.Equal(t, int16(1234), scaleTo16(1234, 16))
	require.Equal(t, int16(1), scaleTo16(256, 24))
	require.Equal(t, int16(32767), scaleTo16(1<<40, 32))
}
