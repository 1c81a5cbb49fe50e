// Package config loads dyad's runtime configuration. The environment is the
// source of truth (HPC launchers configure jobs through it); the serve daemon
// can additionally read a dyad.yml, with the environment taking precedence.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/dyad-io/dyad/pkg/keygen"
)

// Environment variable names recognized at startup.
const (
	EnvPathCons      = "DYAD_PATH_CONS"
	EnvPathProd      = "DYAD_PATH_PROD"
	EnvKindProd      = "DYAD_KIND_PROD"
	EnvKindCons      = "DYAD_KIND_CONS"
	EnvKVSNamespace  = "DYAD_KVS_NAMESPACE"
	EnvKeyDepth      = "DYAD_KEY_DEPTH"
	EnvKeyBins       = "DYAD_KEY_BINS"
	EnvSharedStorage = "DYAD_SHARED_STORAGE"
	EnvSyncDebug     = "DYAD_SYNC_DEBUG"
	EnvSyncCheck     = "DYAD_SYNC_CHECK"
	EnvSyncStart     = "DYAD_SYNC_START"
	EnvSyncDir       = "DYAD_SYNC_DIR"
	EnvCheck         = "DYAD_CHECK_ENV"
	EnvRank          = "DYAD_RANK"
	EnvRedisURL      = "DYAD_REDIS_URL"
	EnvFetchAddr     = "DYAD_FETCH_ADDR"
)

// DefaultRedisURL is used when DYAD_REDIS_URL is unset.
const DefaultRedisURL = "redis://localhost:6379"

// Config holds everything read from the environment at startup.
// Loading is lenient: a malformed value falls back to its default with a log
// line rather than failing, because configuration problems must never break
// the host application.
type Config struct {
	Debug         bool
	Check         bool
	SharedStorage bool
	SyncDir       bool

	KeyDepth uint32
	KeyBins  uint32

	KVSNamespace string
	RedisURL     string

	// Rank is the launcher-assigned rank; nil means allocate one from the KVS.
	Rank *uint32

	// SyncStart is the startup barrier party count; 0 disables the barrier.
	SyncStart int

	PathCons string
	PathProd string
	KindProd bool
	KindCons bool

	// FetchAddr is the listen address for the producer-side fetch server.
	FetchAddr string
}

// FromEnv reads the configuration from the environment.
func FromEnv() *Config {
	cfg := &Config{
		Debug:         envSet(EnvSyncDebug),
		Check:         envSet(EnvSyncCheck),
		SharedStorage: envSet(EnvSharedStorage),
		SyncDir:       envSet(EnvSyncDir),
		KeyDepth:      envUint32(EnvKeyDepth, keygen.DefaultDepth),
		KeyBins:       envUint32(EnvKeyBins, keygen.DefaultBins),
		KVSNamespace:  os.Getenv(EnvKVSNamespace),
		RedisURL:      os.Getenv(EnvRedisURL),
		SyncStart:     envInt(EnvSyncStart, 0),
		PathCons:      os.Getenv(EnvPathCons),
		PathProd:      os.Getenv(EnvPathProd),
		KindProd:      envPositive(EnvKindProd),
		KindCons:      envPositive(EnvKindCons),
		FetchAddr:     os.Getenv(EnvFetchAddr),
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = DefaultRedisURL
	}
	if cfg.FetchAddr == "" {
		cfg.FetchAddr = "127.0.0.1:0"
	}
	if e := os.Getenv(EnvRank); e != "" {
		if v, err := strconv.ParseUint(e, 10, 32); err == nil {
			rank := uint32(v)
			cfg.Rank = &rank
		} else {
			log.Printf("[ERROR] Ignoring malformed %s=%q", EnvRank, e)
		}
	}

	return cfg
}

// envSet reports whether the variable is present, matching the original
// convention where any value (even empty-ish ones like "0") enables the flag.
func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

// envPositive reports whether the variable parses to a positive integer.
func envPositive(name string) bool {
	e := os.Getenv(name)
	if e == "" {
		return false
	}
	v, err := strconv.Atoi(e)
	return err == nil && v > 0
}

func envUint32(name string, def uint32) uint32 {
	e := os.Getenv(name)
	if e == "" {
		return def
	}
	v, err := strconv.ParseUint(e, 10, 32)
	if err != nil || v < 1 {
		log.Printf("[ERROR] Ignoring malformed %s=%q, using %d", name, e, def)
		return def
	}
	return uint32(v)
}

func envInt(name string, def int) int {
	e := os.Getenv(name)
	if e == "" {
		return def
	}
	v, err := strconv.Atoi(e)
	if err != nil {
		log.Printf("[ERROR] Ignoring malformed %s=%q, using %d", name, e, def)
		return def
	}
	return v
}
