package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFetchCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a video's audio track as MP3 without transcribing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.fetchFn(cmd.Context(), args[0], app.outputDir)
			if err != nil {
				app.log().Error("audio download failed", zap.String("url", args[0]), zap.Error(err))
				return err
			}
			fmt.Fprintln(app.outWriter(), path)
			return nil
		},
	}
}
