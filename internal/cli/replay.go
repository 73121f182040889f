package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"quiz-interaction-service/internal/config"
	"quiz-interaction-service/internal/logger"
)

// NewReplayStatsCmd rebuilds a user's statistics snapshot from the stored answers.
func NewReplayStatsCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "replay-stats",
		Short: "Recompute a user's statistics from their answer history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			rt, err := buildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.service.ReplayStatistics(cmd.Context(), userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to replay")
	return cmd
}
