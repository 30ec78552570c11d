package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/config"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/replay"
)

// NewReplayCommand runs a YAML script against in-memory repositories and
// prints the resulting board, timeline and persisted state as JSON.
func NewReplayCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Replay a board and timeline session offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			script, err := replay.Parse(f)
			if err != nil {
				return err
			}

			log := logger.Nop()
			if verbose {
				if log, err = logger.New(config.LoggerConfig{Level: "debug", Format: "console", Output: "file", Filename: "stderr"}); err != nil {
					return err
				}
				defer log.Sync()
			}

			projection, err := timeline.New(timeline.DefaultConfig())
			if err != nil {
				return err
			}

			report, runErr := replay.Run(cmd.Context(), script, projection, log)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every step and persistence call to stderr")
	return cmd
}
