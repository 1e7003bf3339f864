package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"codeberg.org/gruf/go-ffmpreg/ffmpreg"
	"codeberg.org/gruf/go-ffmpreg/wasm"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

var ErrTranscodeFailed = errors.New("transcode failed")

// Transcoder converts src into dst. The output codec follows dst's extension.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// NewTranscoder prefers an ffmpeg found on PATH and falls back to the
// embedded WASM build.
func NewTranscoder(logger *zap.Logger) Transcoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return &FFmpegTranscoder{Executable: path, Logger: logger}
	}
	logger.Debug("ffmpeg not found on PATH; using embedded ffmpeg")
	return &WASMTranscoder{Logger: logger}
}

type FFmpegTranscoder struct {
	Executable string
	Logger     *zap.Logger
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, src, dst string) error {
	args := transcodeArgs(src, dst)
	cmd := exec.CommandContext(ctx, t.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if t.Logger != nil {
		t.Logger.Debug("running ffmpeg", zap.String("ffmpeg", t.Executable), zap.Strings("args", args))
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s -> %s: %v (%s)", ErrTranscodeFailed, filepath.Base(src), filepath.Base(dst), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// WASMTranscoder runs ffmpeg compiled to WebAssembly, so no system ffmpeg is needed.
type WASMTranscoder struct {
	Logger *zap.Logger
}

func (t *WASMTranscoder) Transcode(ctx context.Context, src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}

	srcDir := filepath.Dir(absSrc)
	dstDir := filepath.Dir(absDst)

	var stderr bytes.Buffer
	args := wasm.Args{
		Stderr: &stderr,
		Stdout: io.Discard,
		Args:   transcodeArgs(absSrc, absDst),
		Config: func(cfg wazero.ModuleConfig) wazero.ModuleConfig {
			fsCfg := wazero.NewFSConfig().WithDirMount(srcDir, srcDir)
			if dstDir != srcDir {
				fsCfg = fsCfg.WithDirMount(dstDir, dstDir)
			}
			return cfg.WithFSConfig(fsCfg)
		},
	}

	if t.Logger != nil {
		t.Logger.Debug("running embedded ffmpeg", zap.Strings("args", args.Args))
	}
	rc, err := ffmpreg.Ffmpeg(ctx, args)
	if err != nil {
		return fmt.Errorf("%w: embedded ffmpeg: %v", ErrTranscodeFailed, err)
	}
	if rc != 0 {
		return fmt.Errorf("%w: embedded ffmpeg exited with code %d (%s)", ErrTranscodeFailed, rc, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func transcodeArgs(src, dst string) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", src, "-vn"}
	switch strings.ToLower(filepath.Ext(dst)) {
	case ".mp3":
		args = append(args, "-c:a", "libmp3lame", "-q:a", "2")
	case ".wav":
		args = append(args, "-c:a", "pcm_s16le")
	case ".flac":
		args = append(args, "-c:a", "flac")
	}
	return append(args, dst)
}
