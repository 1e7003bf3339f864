//go:build e2e

package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmueller/tubescribe/internal/audio"
	"github.com/stretchr/testify/require"
)

const (
	e2eWhisperPathEnv = "TUBESCRIBE_E2E_WHISPER_PATH"
	e2eModelDirEnv    = "TUBESCRIBE_E2E_MODEL_DIR"
	e2eVideoURLEnv    = "TUBESCRIBE_E2E_URL"
)

func setupE2E(t *testing.T) string {
	t.Helper()

	whisperPath := strings.TrimSpace(os.Getenv(e2eWhisperPathEnv))
	if whisperPath == "" {
		t.Skip("set TUBESCRIBE_E2E_WHISPER_PATH to run e2e test")
	}

	modelDir := strings.TrimSpace(os.Getenv(e2eModelDirEnv))
	if modelDir == "" {
		modelDir = t.TempDir()
	}

	t.Setenv("TUBESCRIBE_WHISPER_PATH", whisperPath)

	_, setupStderr, err := runApp(t, &appState{}, []string{
		"setup",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--no-progress",
	})
	require.NoErrorf(t, err, "setup command failed: %s", setupStderr)
	return modelDir
}

func TestTranscribeBlankAudioEndToEnd(t *testing.T) {
	modelDir := setupE2E(t)

	silentWAV := filepath.Join(t.TempDir(), "silent.wav")
	require.NoError(t, audio.WAVEncoder{}.Encode(context.Background(), audio.PCM{Samples: make([]int16, 16000), SampleRate: 16000}, silentWAV))

	stdout, stderr, err := runApp(t, &appState{}, []string{
		"transcribe",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--no-progress",
		silentWAV,
	})
	require.NoErrorf(t, err, "transcribe command failed: %s", stderr)
	require.True(t, isBlankTranscript(lastLine(stdout)), "expected blank transcript, got %q", stdout)
}

func TestChunkedTranscriptionEndToEnd(t *testing.T) {
	modelDir := setupE2E(t)

	silentWAV := filepath.Join(t.TempDir(), "silent.wav")
	require.NoError(t, audio.WAVEncoder{}.Encode(context.Background(), audio.PCM{Samples: make([]int16, 3*16000), SampleRate: 16000}, silentWAV))

	stdout, stderr, err := runApp(t, &appState{}, []string{
		"transcribe",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--max-chunk-size", "40KB",
		"--no-progress",
		silentWAV,
	})
	require.NoErrorf(t, err, "transcribe command failed: %s", stderr)
	require.Contains(t, stdout, "splitting into chunks")
}

func TestPipelineEndToEnd(t *testing.T) {
	url := strings.TrimSpace(os.Getenv(e2eVideoURLEnv))
	if url == "" {
		t.Skip("set TUBESCRIBE_E2E_URL to run the download pipeline")
	}
	modelDir := setupE2E(t)
	outputDir := t.TempDir()

	stdout, stderr, err := runApp(t, &appState{}, []string{
		"--model", "tiny",
		"--model-dir", modelDir,
		"--output-dir", outputDir,
		"--no-progress",
		url,
	})
	require.NoErrorf(t, err, "pipeline failed: %s", stderr)
	require.Contains(t, stdout, "Audio file saved at: ")
	require.Contains(t, stdout, "Transcription complete. Here is the result:")

	matches, err := filepath.Glob(filepath.Join(outputDir, "*.mp3"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
