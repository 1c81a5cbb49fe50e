package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden values fix the wire contract: the seed schedule, the xor-fold and the
// hex formatting must reproduce these keys bit for bit. They were generated
// with an independent Murmur3 x64-128 reference implementation.
func TestPathKeyGolden(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		depth uint32
		bins  uint32
		want  string
	}{
		{"depth 1", "a/b/c.dat", 1, 16, "8.a/b/c.dat"},
		{"defaults", "a/b/c.dat", 3, 1024, "118.71.153.a/b/c.dat"},
		{"empty path", "", 3, 1024, "2cd.18a.214."},
		{"plain file", "hello.txt", 3, 1024, "12d.7c.3df.hello.txt"},
		{"depth 2 bins 256", "dir/sub/file.bin", 2, 256, "7a.6c.dir/sub/file.bin"},
		{"depth 4", "a/b/c.dat", 4, 1024, "118.71.153.20d.a/b/c.dat"},
		{"hpc output", "data/out/step_00042.h5", 3, 1024, "334.42.207.data/out/step_00042.h5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PathKey(tt.path, tt.depth, tt.bins)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathKeyDeterministic(t *testing.T) {
	first, err := PathKey("some/deep/nested/path.dat", DefaultDepth, DefaultBins)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		got, err := PathKey("some/deep/nested/path.dat", DefaultDepth, DefaultBins)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}

// Deeper keys extend shallower ones: the per-level seeds do not depend on the
// total depth, so a depth-4 key starts with the depth-3 key's bins.
func TestPathKeyDepthPrefix(t *testing.T) {
	shallow, err := PathKey("a/b/c.dat", 3, 1024)
	require.NoError(t, err)
	deep, err := PathKey("a/b/c.dat", 4, 1024)
	require.NoError(t, err)

	shallowBins := strings.TrimSuffix(shallow, "a/b/c.dat")
	assert.True(t, strings.HasPrefix(deep, shallowBins))
}

func TestPathKeySuffixIsLiteralPath(t *testing.T) {
	key, err := PathKey("x/y/z.out", 3, 1024)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, "x/y/z.out"))

	// One hex bin and one dot per level before the path.
	assert.Equal(t, 3, strings.Count(strings.TrimSuffix(key, "x/y/z.out"), "."))
}

func TestPathKeyBinsInRange(t *testing.T) {
	paths := []string{"a", "b", "a/b", "file.dat", "really/long/path/with/many/components.h5"}
	for _, p := range paths {
		key, err := PathKey(p, 5, 8)
		require.NoError(t, err)
		bins := strings.Split(strings.TrimSuffix(key, p), ".")
		require.Len(t, bins, 6) // five bins plus the empty slot after the last dot
		for _, b := range bins[:5] {
			assert.Contains(t, []string{"0", "1", "2", "3", "4", "5", "6", "7"}, b)
		}
	}
}

func TestPathKeyInvalidInputs(t *testing.T) {
	t.Run("zero depth", func(t *testing.T) {
		_, err := PathKey("a", 0, 1024)
		assert.Error(t, err)
	})

	t.Run("zero bins", func(t *testing.T) {
		_, err := PathKey("a", 3, 0)
		assert.Error(t, err)
	})
}

func TestPathKeyDistinctPaths(t *testing.T) {
	seen := make(map[string]string)
	paths := []string{
		"a.dat", "b.dat", "c.dat", "a/a.dat", "a/b.dat",
		"out/1.h5", "out/2.h5", "out/3.h5",
	}
	for _, p := range paths {
		key, err := PathKey(p, DefaultDepth, DefaultBins)
		require.NoError(t, err)
		prev, dup := seen[key]
		require.False(t, dup, "paths %q and %q collided on key %q", prev, p, key)
		seen[key] = p
	}
}
