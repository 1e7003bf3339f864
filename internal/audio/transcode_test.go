package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscodeArgsFollowDestinationExtension(t *testing.T) {
	t.Parallel()

	mp3 := transcodeArgs("in.webm", "out.mp3")
	require.Equal(t, []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", "in.webm", "-vn", "-c:a", "libmp3lame", "-q:a", "2", "out.mp3"}, mp3)

	wav := transcodeArgs("in.m4a", "out.wav")
	require.Contains(t, wav, "pcm_s16le")
	require.Equal(t, "out.wav", wav[len(wav)-1])
}

func TestFFmpegTranscoderRunsExecutable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stubPath, argsFile := writeStub(t, dir)

	src := filepath.Join(dir, "raw.webm")
	dst := filepath.Join(dir, "raw.mp3")
	require.NoError(t, (&FFmpegTranscoder{Executable: stubPath}).Transcode(context.Background(), src, dst))
	require.FileExists(t, dst)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Contains(t, string(args), "-i "+src+" -vn -c:a libmp3lame")
}

func TestFFmpegTranscoderWrapsFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stubPath := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(stubPath, []byte("#!/bin/sh\n>&2 echo 'Invalid data found when processing input'\nexit 1\n"), 0o755))

	err := (&FFmpegTranscoder{Executable: stubPath}).Transcode(context.Background(), "a.webm", filepath.Join(dir, "a.mp3"))
	require.ErrorIs(t, err, ErrTranscodeFailed)
	require.Contains(t, err.Error(), "Invalid data found")
}
