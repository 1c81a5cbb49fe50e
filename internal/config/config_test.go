package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearDyadEnv(t *testing.T) {
	for _, name := range []string{
		EnvPathCons, EnvPathProd, EnvKindProd, EnvKindCons, EnvKVSNamespace,
		EnvKeyDepth, EnvKeyBins, EnvSharedStorage, EnvSyncDebug, EnvSyncCheck,
		EnvSyncStart, EnvSyncDir, EnvRank, EnvRedisURL, EnvFetchAddr,
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearDyadEnv(t)

	cfg := FromEnv()

	assert.False(t, cfg.Debug)
	assert.False(t, cfg.Check)
	assert.False(t, cfg.SharedStorage)
	assert.False(t, cfg.SyncDir)
	assert.Equal(t, uint32(3), cfg.KeyDepth)
	assert.Equal(t, uint32(1024), cfg.KeyBins)
	assert.Equal(t, "", cfg.KVSNamespace)
	assert.Equal(t, DefaultRedisURL, cfg.RedisURL)
	assert.Nil(t, cfg.Rank)
	assert.Equal(t, 0, cfg.SyncStart)
	assert.False(t, cfg.KindProd)
	assert.False(t, cfg.KindCons)
	assert.Equal(t, "127.0.0.1:0", cfg.FetchAddr)
}

func TestFromEnvFullConfiguration(t *testing.T) {
	clearDyadEnv(t)
	t.Setenv(EnvSyncDebug, "1")
	t.Setenv(EnvSyncCheck, "1")
	t.Setenv(EnvSharedStorage, "1")
	t.Setenv(EnvSyncDir, "1")
	t.Setenv(EnvKeyDepth, "5")
	t.Setenv(EnvKeyBins, "16")
	t.Setenv(EnvKVSNamespace, "ns1")
	t.Setenv(EnvRedisURL, "redis://redis.example:6380")
	t.Setenv(EnvRank, "12")
	t.Setenv(EnvSyncStart, "4")
	t.Setenv(EnvPathCons, "/mnt/cons")
	t.Setenv(EnvPathProd, "/mnt/prod")
	t.Setenv(EnvKindProd, "1")
	t.Setenv(EnvKindCons, "1")
	t.Setenv(EnvFetchAddr, "0.0.0.0:7777")

	cfg := FromEnv()

	assert.True(t, cfg.Debug)
	assert.True(t, cfg.Check)
	assert.True(t, cfg.SharedStorage)
	assert.True(t, cfg.SyncDir)
	assert.Equal(t, uint32(5), cfg.KeyDepth)
	assert.Equal(t, uint32(16), cfg.KeyBins)
	assert.Equal(t, "ns1", cfg.KVSNamespace)
	assert.Equal(t, "redis://redis.example:6380", cfg.RedisURL)
	require.NotNil(t, cfg.Rank)
	assert.Equal(t, uint32(12), *cfg.Rank)
	assert.Equal(t, 4, cfg.SyncStart)
	assert.Equal(t, "/mnt/cons", cfg.PathCons)
	assert.Equal(t, "/mnt/prod", cfg.PathProd)
	assert.True(t, cfg.KindProd)
	assert.True(t, cfg.KindCons)
	assert.Equal(t, "0.0.0.0:7777", cfg.FetchAddr)
}

// Flag variables enable on presence, matching the launcher convention.
func TestFromEnvFlagPresence(t *testing.T) {
	clearDyadEnv(t)
	t.Setenv(EnvSyncDebug, "0")

	cfg := FromEnv()
	assert.True(t, cfg.Debug, "presence enables the flag regardless of value")
}

// Kind variables require a positive integer.
func TestFromEnvKindRequiresPositive(t *testing.T) {
	clearDyadEnv(t)
	t.Setenv(EnvKindProd, "0")
	t.Setenv(EnvKindCons, "yes")

	cfg := FromEnv()
	assert.False(t, cfg.KindProd)
	assert.False(t, cfg.KindCons)
}

// Malformed numbers never break startup; they fall back to defaults.
func TestFromEnvMalformedValues(t *testing.T) {
	clearDyadEnv(t)
	t.Setenv(EnvKeyDepth, "banana")
	t.Setenv(EnvKeyBins, "0")
	t.Setenv(EnvRank, "-3")
	t.Setenv(EnvSyncStart, "many")

	cfg := FromEnv()

	assert.Equal(t, uint32(3), cfg.KeyDepth)
	assert.Equal(t, uint32(1024), cfg.KeyBins)
	assert.Nil(t, cfg.Rank)
	assert.Equal(t, 0, cfg.SyncStart)
}

func TestLoadFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dyad.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
version: "1.0"
listen: "0.0.0.0:9000"
redis_url: "redis://kvs.local:6379"
namespace: "jobA"
producer_path: "/scratch/prod"
`), 0o644))

		fc, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:9000", fc.Listen)
		assert.Equal(t, "redis://kvs.local:6379", fc.RedisURL)
		assert.Equal(t, "jobA", fc.Namespace)
		assert.Equal(t, "/scratch/prod", fc.ProducerPath)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})

	t.Run("bad version", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dyad.yml")
		require.NoError(t, os.WriteFile(path, []byte(`version: "2.0"`), 0o644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dyad.yml")
		require.NoError(t, os.WriteFile(path, []byte("version: [unclosed"), 0o644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}

func TestFileConfigApply(t *testing.T) {
	t.Run("fills unset fields", func(t *testing.T) {
		clearDyadEnv(t)
		cfg := FromEnv()
		fc := &FileConfig{
			Version:      "1.0",
			Listen:       "0.0.0.0:9000",
			RedisURL:     "redis://file:6379",
			Namespace:    "fromfile",
			ProducerPath: "/from/file",
		}

		fc.Apply(cfg)

		assert.Equal(t, "0.0.0.0:9000", cfg.FetchAddr)
		assert.Equal(t, "redis://file:6379", cfg.RedisURL)
		assert.Equal(t, "fromfile", cfg.KVSNamespace)
		assert.Equal(t, "/from/file", cfg.PathProd)
	})

	t.Run("environment wins", func(t *testing.T) {
		clearDyadEnv(t)
		t.Setenv(EnvRedisURL, "redis://env:6379")
		t.Setenv(EnvPathProd, "/from/env")
		cfg := FromEnv()
		fc := &FileConfig{
			Version:      "1.0",
			RedisURL:     "redis://file:6379",
			ProducerPath: "/from/file",
		}

		fc.Apply(cfg)

		assert.Equal(t, "redis://env:6379", cfg.RedisURL)
		assert.Equal(t, "/from/env", cfg.PathProd)
	})
}
