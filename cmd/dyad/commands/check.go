package commands

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyad-io/dyad/internal/config"
	"github.com/dyad-io/dyad/internal/printer"
	"github.com/dyad-io/dyad/pkg/kvs"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the coordination transport is reachable",
	Long: `Check connects to the configured Redis transport and pings it.
Exits non-zero when the transport is unreachable, in which case hooks in
application processes will run in pass-through mode.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()

		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return printer.Error("Invalid Redis URL", err.Error(), nil)
		}

		client, err := kvs.NewClient(redisOpts, cfg.KVSNamespace)
		if err != nil {
			return printer.Error("Failed to create transport client", err.Error(), nil)
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx); err != nil {
			return printer.Error("Transport unreachable", err.Error(),
				[]string{"Check that Redis is running and " + config.EnvRedisURL + " points at it"})
		}

		printer.Success("Transport reachable (namespace %q)\n", client.Namespace())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
