package cli

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fmueller/tubescribe/internal/whisper"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// spinnerEngine shows a spinner on stderr for the duration of each engine call.
type spinnerEngine struct {
	whisper.Engine
	enabled bool
	logger  *zap.Logger
}

func (s spinnerEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	stop := startSpinner(s.enabled, "Transcribing")
	started := time.Now()

	text, err := s.Engine.Transcribe(ctx, audioPath)
	stop()
	if err != nil {
		s.logger.Warn("engine call failed", zap.String("engine", s.Name()), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	s.logger.Debug("engine call finished", zap.String("engine", s.Name()), zap.Duration("elapsed", time.Since(started)))
	return text, nil
}
