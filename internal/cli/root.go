package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fmueller/tubescribe/internal/audio"
	"github.com/fmueller/tubescribe/internal/config"
	"github.com/fmueller/tubescribe/internal/fetch"
	"github.com/fmueller/tubescribe/internal/logging"
	"github.com/fmueller/tubescribe/internal/platform"
	"github.com/fmueller/tubescribe/internal/transcribe"
	"github.com/fmueller/tubescribe/internal/version"
	"github.com/fmueller/tubescribe/internal/whisper"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// DefaultVideoURL is transcribed when tubescribe runs without a URL.
const DefaultVideoURL = "https://www.youtube.com/watch?v=w2n_p81bUhs"

type appState struct {
	configPath   string
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	outputDir    string
	downloader   string
	engine       string
	model        string
	modelDir     string
	language     string
	autoDownload bool
	maxChunkSize string
	skipSilent   bool
	silenceDBFS  float64

	openAIBaseURL string
	openAIModel   string

	maxChunkBytes int64

	logger *zap.Logger
	out    io.Writer

	fetchFn      func(ctx context.Context, url, outputDir string) (string, error)
	transcribeFn func(ctx context.Context, audioPath string) (string, error)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&appState{})
}

func newRootCmd(app *appState) *cobra.Command {
	if app.fetchFn == nil {
		app.fetchFn = app.fetchAudio
	}
	if app.transcribeFn == nil {
		app.transcribeFn = app.transcribeAudio
	}

	cmd := &cobra.Command{
		Use:           "tubescribe [url]",
		Short:         "Download a video's audio track and transcribe it with Whisper",
		Args:          urlOrCommand,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			url := DefaultVideoURL
			if len(args) == 1 {
				url = args[0]
			}
			return app.runPipeline(cmd.Context(), url)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	bindPersistentFlags(cmd, app)

	cmd.AddCommand(newFetchCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindPersistentFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/tubescribe/config.yml)")
	flags.BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
	flags.StringVar(&app.outputDir, "output-dir", ".", "Directory for downloaded audio files")
	flags.StringVar(&app.downloader, "downloader", "", "Downloader executable (default yt-dlp, then youtube-dl)")
	flags.StringVar(&app.engine, "engine", whisper.EngineLocal, "Speech engine: local|openai")
	flags.StringVar(&app.model, "model", whisper.DefaultModel, "Model name or model file path for the local engine")
	flags.StringVar(&app.modelDir, "model-dir", "", "Directory where models are stored")
	flags.StringVar(&app.language, "language", "auto", "Language code (auto|en|de|...) for transcription")
	flags.BoolVar(&app.autoDownload, "auto-download", true, "Automatically download missing models")
	flags.StringVar(&app.maxChunkSize, "max-chunk-size", "25MiB", "Largest audio file sent to the engine in one request")
	flags.BoolVar(&app.skipSilent, "skip-silent-chunks", false, "Do not transcribe chunks that are near-silent")
	flags.Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", transcribe.DefaultSilenceDBFS, "Silence threshold in dBFS for --skip-silent-chunks")
}

// urlOrCommand accepts at most one argument and reports words that are not
// URLs as unknown commands, since the root command also takes a URL.
func urlOrCommand(cmd *cobra.Command, args []string) error {
	if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
		return err
	}
	if len(args) == 1 && !strings.Contains(args[0], "://") {
		return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

func (a *appState) prepare(cmd *cobra.Command) error {
	if a.out == nil {
		a.out = cmd.OutOrStdout()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	configPath, err := platform.ResolveConfigPath(a.configPath)
	if err != nil {
		return err
	}
	cfg, found, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !found && cmd.Flags().Changed("config") {
		return fmt.Errorf("config file not found: %s", configPath)
	}
	a.applyConfig(cfg, cmd.Flags().Changed)

	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs, RunID: logging.NewRunID()})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	if found {
		a.log().Debug("loaded config", zap.String("path", configPath))
	}

	engine, err := whisper.ValidateEngineName(a.engine)
	if err != nil {
		return err
	}
	a.engine = engine
	a.language = sanitizeLanguage(a.language)

	if a.maxChunkBytes <= 0 {
		size, err := humanize.ParseBytes(a.maxChunkSize)
		if err != nil {
			return fmt.Errorf("invalid --max-chunk-size %q: %w", a.maxChunkSize, err)
		}
		if size == 0 {
			return errors.New("--max-chunk-size must be greater than zero")
		}
		a.maxChunkBytes = int64(size)
	}
	return nil
}

// applyConfig copies config values into every setting whose flag was not
// given on the command line.
func (a *appState) applyConfig(cfg config.Config, changed func(string) bool) {
	setString := func(flag string, dst *string, value string) {
		if value != "" && !changed(flag) {
			*dst = value
		}
	}

	setString("output-dir", &a.outputDir, cfg.OutputDir)
	setString("engine", &a.engine, cfg.Engine)
	setString("model", &a.model, cfg.Model)
	setString("model-dir", &a.modelDir, cfg.ModelDir)
	setString("language", &a.language, cfg.Language)
	setString("downloader", &a.downloader, cfg.Downloader)
	if cfg.MaxChunkSize > 0 && !changed("max-chunk-size") {
		a.maxChunkBytes = int64(cfg.MaxChunkSize)
	}
	a.openAIBaseURL = cfg.OpenAI.BaseURL
	a.openAIModel = cfg.OpenAI.Model
}

func (a *appState) runPipeline(ctx context.Context, url string) error {
	audioPath, err := a.fetchFn(ctx, url, a.outputDir)
	if err != nil {
		a.log().Error("audio download failed", zap.String("url", url), zap.Error(err))
		return err
	}

	transcript, err := a.transcribeFn(ctx, audioPath)
	if err != nil {
		a.log().Error("transcription failed", zap.String("audio", audioPath), zap.Error(err))
		return err
	}

	a.printTranscript(transcript)
	return nil
}

func (a *appState) fetchAudio(ctx context.Context, url, outputDir string) (string, error) {
	fetcher, err := fetch.New(a.downloader, audio.NewTranscoder(a.log()), a.log(), a.console().Status)
	if err != nil {
		return "", err
	}
	return fetcher.Fetch(ctx, url, outputDir)
}

func (a *appState) printTranscript(transcript string) {
	a.console().Status("Transcription complete. Here is the result:")
	fmt.Fprintln(a.outWriter(), transcript)
	if isBlankTranscript(transcript) {
		a.log().Warn(noSpeechHint())
	}
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) console() *console {
	return newConsole(a.outWriter())
}
