package dyad

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyad-io/dyad/internal/config"
	"github.com/dyad-io/dyad/pkg/fetch"
	"github.com/dyad-io/dyad/pkg/kvs"
)

// syncStartBarrier names the job-wide startup barrier.
const syncStartBarrier = "sync_start"

// Init builds the process-wide context from the environment. Call it once,
// before the application performs managed I/O; calling it again while a
// context is initialized is a no-op.
//
// Init never fails the process: if the transport cannot be opened the
// context comes up in degraded mode and every hook passes straight through
// to the real I/O call.
func Init() {
	if c := current(); c != nil && c.initialized {
		return
	}
	global.Store(newCtx(config.FromEnv()))
}

// Finalize tears down the process-wide context, stopping the embedded fetch
// server (if any) and releasing the transport handle. Safe to call without a
// prior Init.
func Finalize() {
	c := global.Swap(nil)
	if c == nil {
		return
	}

	if c.syncStarted {
		fmt.Printf("DYAD stops at %s\n", wallStamp(time.Now()))
	}

	if c.fetchSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.fetchSrv.Shutdown(ctx); err != nil {
			log.Printf("[ERROR] Fetch server shutdown error: %v", err)
		}
		cancel()
		if c.kvs != nil {
			if err := c.kvs.UnregisterPeer(context.Background(), c.rank); err != nil {
				log.Printf("[ERROR] Failed to unregister peer %d: %v", c.rank, err)
			}
		}
	}

	if c.kvs != nil {
		if err := c.kvs.Close(); err != nil {
			log.Printf("[ERROR] Error closing transport: %v", err)
		}
	}
}

// newCtx assembles a context from cfg. Every failure downgrades rather than
// aborts: the host application's I/O must keep working with coordination off.
func newCtx(cfg *config.Config) *Ctx {
	c := &Ctx{
		debug:         cfg.Debug,
		check:         cfg.Check,
		sharedStorage: cfg.SharedStorage,
		syncDir:       cfg.SyncDir,
		keyDepth:      cfg.KeyDepth,
		keyBins:       cfg.KeyBins,
		kvsNamespace:  cfg.KVSNamespace,
	}

	c.kvs = openTransport(cfg)

	if c.kvs != nil {
		if cfg.Rank != nil {
			c.rank = *cfg.Rank
		} else {
			rank, err := c.kvs.AcquireRank(context.Background())
			if err != nil {
				log.Printf("[ERROR] Failed to acquire a rank: %v", err)
				c.kvs.Close()
				c.kvs = nil
			} else {
				c.rank = rank
			}
		}
	}

	if c.kvs != nil && cfg.KindProd && cfg.PathProd != "" {
		startFetchServer(c, cfg)
	}

	c.initialized = true
	c.reenter.Store(true)

	c.debugf("initialized: rank=%d depth=%d bins=%d namespace=%q shared_storage=%v",
		c.rank, c.keyDepth, c.keyBins, c.kvsNamespace, c.sharedStorage)

	if cfg.SyncStart > 0 && c.kvs != nil {
		c.debugf("rank %d entering startup barrier of %d", c.rank, cfg.SyncStart)
		if err := c.kvs.Barrier(context.Background(), syncStartBarrier, cfg.SyncStart); err != nil {
			log.Printf("[ERROR] Startup barrier failed for %d ranks: %v", cfg.SyncStart, err)
		} else {
			c.syncStarted = true
			fmt.Printf("DYAD synchronized start at %s\n", wallStamp(time.Now()))
		}
	}

	return c
}

// openTransport connects to the KVS; a nil return means degraded mode.
func openTransport(cfg *config.Config) *kvs.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("[ERROR] Invalid %s: %v", config.EnvRedisURL, err)
		return nil
	}

	client, err := kvs.NewClient(opts, cfg.KVSNamespace)
	if err != nil {
		log.Printf("[ERROR] Failed to create transport client: %v", err)
		return nil
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		log.Printf("[ERROR] Transport unreachable, running in pass-through mode: %v", err)
		client.Close()
		return nil
	}
	return client
}

// startFetchServer brings up the producer-side fetch endpoint and registers
// it as this rank's peer address.
func startFetchServer(c *Ctx, cfg *config.Config) {
	srv, err := fetch.NewServer(fetch.Config{
		Addr:   cfg.FetchAddr,
		Prefix: cfg.PathProd,
		Open: func(name string) (*os.File, error) {
			return openReal(name, os.O_RDONLY, 0)
		},
		Pinger: c.kvs,
		Debug:  cfg.Debug,
	})
	if err != nil {
		log.Printf("[ERROR] Failed to create fetch server: %v", err)
		return
	}
	if err := srv.Start(); err != nil {
		log.Printf("[ERROR] Failed to start fetch server: %v", err)
		return
	}
	if err := c.kvs.RegisterPeer(context.Background(), c.rank, srv.URL()); err != nil {
		log.Printf("[ERROR] Failed to register peer address %q: %v", srv.URL(), err)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		srv.Shutdown(ctx)
		cancel()
		return
	}
	c.fetchSrv = srv
	log.Printf("[INFO] Fetch server for rank %d listening on %s", c.rank, srv.Addr())
}

// wallStamp formats a wall-clock timestamp with nanosecond precision for the
// startup/teardown markers.
func wallStamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s.%09d", t.Format("01/02/06 15:04:05"), t.Nanosecond())
}
