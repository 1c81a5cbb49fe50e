package commands

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyad-io/dyad/internal/config"
	"github.com/dyad-io/dyad/internal/printer"
	"github.com/dyad-io/dyad/pkg/fetch"
	"github.com/dyad-io/dyad/pkg/kvs"
)

var serveConfigFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the producer-side fetch daemon",
	Long: `Serve answers dyad.fetch requests for the files this rank produces.

Configuration comes from the DYAD_* environment variables, optionally
overlaid with a dyad.yml file; the environment wins where both are set.
The daemon registers its address as this rank's peer record so consumers
can find it, and unregisters on shutdown.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "path to dyad.yml (optional)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.FromEnv()

	if serveConfigFile != "" {
		fc, err := config.LoadFile(serveConfigFile)
		if err != nil {
			return printer.Error("Invalid configuration file", err.Error(), nil)
		}
		fc.Apply(cfg)
	}

	if cfg.PathProd == "" {
		return printer.Error("No producer directory configured",
			"The fetch daemon serves files from the producer-managed directory.",
			[]string{
				"Set " + config.EnvPathProd + " in the environment",
				"Set producer_path in dyad.yml and pass --config",
			})
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return printer.Error("Invalid Redis URL", err.Error(), nil)
	}

	client, err := kvs.NewClient(redisOpts, cfg.KVSNamespace)
	if err != nil {
		return printer.Error("Failed to create transport client", err.Error(), nil)
	}
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = client.Ping(pingCtx)
	cancel()
	if err != nil {
		return printer.Error("Failed to connect to Redis", err.Error(),
			[]string{"Check that Redis is running and " + config.EnvRedisURL + " points at it"})
	}
	log.Printf("[INFO] Connected to Redis (namespace %q)", client.Namespace())

	var rank uint32
	if cfg.Rank != nil {
		rank = *cfg.Rank
	} else {
		rank, err = client.AcquireRank(context.Background())
		if err != nil {
			return printer.Error("Failed to acquire a rank", err.Error(), nil)
		}
	}

	srv, err := fetch.NewServer(fetch.Config{
		Addr:   cfg.FetchAddr,
		Prefix: cfg.PathProd,
		Pinger: client,
		Debug:  cfg.Debug,
	})
	if err != nil {
		return printer.Error("Failed to create fetch server", err.Error(), nil)
	}
	if err := srv.Start(); err != nil {
		return printer.Error("Failed to start fetch server", err.Error(), nil)
	}
	log.Printf("[INFO] Fetch daemon for rank %d listening on %s", rank, srv.Addr())

	if err := client.RegisterPeer(context.Background(), rank, srv.URL()); err != nil {
		return printer.Error("Failed to register peer address", err.Error(), nil)
	}
	printer.Success("Serving %s as rank %d on %s\n", cfg.PathProd, rank, srv.URL())

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("[INFO] Received signal: %v", sig)

	// Graceful shutdown: drop the peer record first so consumers stop
	// resolving this address, then drain in-flight fetches.
	log.Printf("[INFO] Initiating graceful shutdown...")
	if err := client.UnregisterPeer(context.Background(), rank); err != nil {
		log.Printf("[ERROR] Failed to unregister peer: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Fetch server shutdown error: %v", err)
		return err
	}

	log.Printf("[INFO] Fetch daemon shutdown complete")
	return nil
}
