// Package keygen maps user file paths to the hierarchical KVS keys used to
// coordinate ownership across ranks.
//
// A key has the form "b0.b1...b{d-1}.<path>": one hexadecimal bin per level of
// a fan-out tree, followed by the literal path so keys stay human-debuggable.
// Each bin is derived from a seeded 128-bit Murmur3 hash of the whole path,
// xor-folded to 32 bits and reduced modulo the per-level bin count.
//
// The seed schedule and fold are a cross-language wire contract: every rank in
// a job (and any reimplementation) must produce byte-identical keys for the
// same (path, depth, bins) inputs.
package keygen

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

const (
	// DefaultDepth is the key tree depth used when none is configured.
	DefaultDepth uint32 = 3
	// DefaultBins is the per-level fan-out used when none is configured.
	DefaultBins uint32 = 1024
)

// seeds feed the per-level hash. The running seed starts at 57 and accumulates
// one entry per level, cycling after ten levels. Changing these breaks key
// compatibility with every deployed rank.
var seeds = [10]uint32{
	104677, 104681, 104683, 104693, 104701,
	104707, 104711, 104717, 104723, 104729,
}

// PathKey computes the KVS key for path with the given tree depth and
// per-level bin count. It is a pure function of its inputs and returns the
// same output on every rank.
func PathKey(path string, depth, bins uint32) (string, error) {
	if depth < 1 {
		return "", fmt.Errorf("key depth must be at least 1, got %d", depth)
	}
	if bins < 1 {
		return "", fmt.Errorf("key bins must be at least 1, got %d", bins)
	}

	var b strings.Builder
	b.Grow(len(path) + int(depth)*9)

	seed := uint32(57)
	data := []byte(path)
	for d := uint32(0); d < depth; d++ {
		seed += seeds[d%10]
		h1, h2 := murmur3.Sum128WithSeed(data, seed)
		fold := uint32(h1) ^ uint32(h1>>32) ^ uint32(h2) ^ uint32(h2>>32)
		fmt.Fprintf(&b, "%x.", fold%bins)
	}
	b.WriteString(path)
	return b.String(), nil
}
