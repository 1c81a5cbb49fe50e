// Package kvs is the Redis-backed coordination plane for dyad.
//
// It stores three kinds of records, all namespaced so multiple jobs can share
// one Redis server:
//
//   - ownership records: topic key -> producer rank, written once per file by
//     the rank that produced it
//   - peer records: rank -> fetch-server address, so consumers can turn an
//     owner rank into somewhere to fetch bytes from
//   - a rank counter for jobs whose launcher does not hand out ranks itself
//   - barrier counters for named n-party barriers such as the startup barrier
//
// Reads that need to wait for a producer use wait-create semantics: the call
// blocks until the key exists, with no timeout of its own. Cancellation, if
// wanted, comes from the caller's context.
package kvs
