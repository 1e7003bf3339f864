package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/tubescribe/internal/platform"
	"go.uber.org/zap"
)

const executableEnv = "TUBESCRIBE_WHISPER_PATH"

// CLIEngine runs the whisper.cpp command line tool against a local ggml model.
type CLIEngine struct {
	Executable string
	ModelPath  string
	Language   string
	Logger     *zap.Logger
}

func NewCLIEngine(modelPath, language string, logger *zap.Logger) (*CLIEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is required")
	}

	exe, err := ResolveExecutable()
	if err != nil {
		return nil, err
	}

	return &CLIEngine{Executable: exe, ModelPath: modelPath, Language: language, Logger: logger}, nil
}

// ResolveExecutable finds whisper-cli: the env override first, then a copy
// bundled next to the tubescribe binary, then PATH.
func ResolveExecutable() (string, error) {
	if override := strings.TrimSpace(os.Getenv(executableEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return "", fmt.Errorf("%s is not executable: %w", executableEnv, err)
		}
		return override, nil
	}

	self, err := os.Executable()
	if err == nil {
		for _, candidate := range ExecutableCandidates(self) {
			if ensureExecutable(candidate) == nil {
				return candidate, nil
			}
		}
	}

	if path, err := exec.LookPath(executableName()); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found; install whisper.cpp or set %s", executableName(), executableEnv)
}

func ExecutableCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	name := executableName()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", name),
		filepath.Join(binDir, "libexec", "whisper", name),
		filepath.Join(binDir, "packaging", "whisper", platform.HostTarget(), name),
		filepath.Join(binDir, name),
	}
}

func (e *CLIEngine) Name() string {
	return "whisper.cpp"
}

func (e *CLIEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if err := ensureExecutable(e.Executable); err != nil {
		return "", fmt.Errorf("whisper-cli missing or not executable: %w", err)
	}

	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("tubescribe-%d", time.Now().UnixNano()))
	txtOut := outBase + ".txt"

	args := []string{"-m", e.ModelPath, "-f", audioPath, "-nt", "-otxt", "-of", outBase}
	lang := strings.TrimSpace(e.Language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, e.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.logger().Debug("running whisper-cli", zap.String("engine", e.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return "", fmt.Errorf("whisper-cli at %s is missing required shared libraries (%s); rebuild whisper.cpp with BUILD_SHARED_LIBS=OFF", e.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return "", fmt.Errorf("whisper-cli crashed with an illegal CPU instruction; set %s to a build for this CPU", executableEnv)
		}
		return "", fmt.Errorf("whisper transcribe %s: %w (%s)", filepath.Base(audioPath), err, errText)
	}

	defer os.Remove(txtOut)
	content, err := os.ReadFile(txtOut)
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func (e *CLIEngine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func executableName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
