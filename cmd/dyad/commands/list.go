package commands

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyad-io/dyad/internal/config"
	"github.com/dyad-io/dyad/internal/printer"
	"github.com/dyad-io/dyad/pkg/kvs"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ownership records in the namespace",
	Long: `List scans the configured KVS namespace and prints every ownership
record as "topic -> rank". Intended for debugging a running job; the scan
is not part of any hook path.`,
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

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		owners, err := client.Owners(ctx)
		if err != nil {
			return printer.Error("Failed to scan ownership records", err.Error(), nil)
		}

		if len(owners) == 0 {
			printer.Info("No ownership records in namespace %q\n", client.Namespace())
			return nil
		}

		topics := make([]string, 0, len(owners))
		for topic := range owners {
			topics = append(topics, topic)
		}
		sort.Strings(topics)

		for _, topic := range topics {
			printer.Printf("%s -> %d\n", topic, owners[topic])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
