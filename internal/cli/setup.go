package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fmueller/tubescribe/internal/download"
	"github.com/fmueller/tubescribe/internal/fetch"
	"github.com/fmueller/tubescribe/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if _, err := fetch.ResolveDownloader(app.downloader); err != nil {
				app.log().Warn("downloader not available; tubescribe cannot fetch videos until it is installed", zap.Error(err))
			}
			if app.engine == whisper.EngineOpenAI {
				fmt.Fprintln(out, "Engine openai needs no local model")
				return nil
			}
			if _, err := whisper.ResolveExecutable(); err != nil {
				app.log().Warn("whisper-cli not available", zap.Error(err))
			}

			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}

			if !resolved.NeedsDownload {
				if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
					app.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
					resolved.NeedsDownload = true
				}
			}

			if !resolved.NeedsDownload {
				app.log().Info("model already present", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
				fmt.Fprintf(out, "Model %s already present at %s\n", resolved.Name, resolved.Path)
				return nil
			}

			app.log().Info("downloading model",
				zap.String("model", resolved.Name),
				zap.String("size", humanize.IBytes(uint64(resolved.SizeBytes))),
				zap.String("path", resolved.Path),
			)
			if err := download.DownloadFile(cmd.Context(), download.Options{
				URL:            resolved.URL,
				Destination:    resolved.Path,
				ExpectedSHA256: resolved.SHA256,
				ExpectedSize:   resolved.SizeBytes,
				NoProgress:     app.noProgress,
				Logger:         app.log(),
			}); err != nil {
				return fmt.Errorf("download model %s: %w", resolved.Name, err)
			}

			fmt.Fprintf(out, "Model %s installed at %s\n", resolved.Name, resolved.Path)
			return nil
		},
	}
}
