package kvs

import "fmt"

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced so that multiple dyad jobs can
// safely coexist on a single Redis server.
//
// Key pattern: dyad:{namespace}:{entity}[:{id}]
// Channel patterns: dyad:{namespace}:key_events and
// dyad:{namespace}:barrier:{name}:events

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "default"

// OwnerKey returns the Redis key holding the owner rank of a topic.
// Pattern: dyad:{namespace}:owner:{topic}
func OwnerKey(namespace, topic string) string {
	return fmt.Sprintf("dyad:%s:owner:%s", namespace, topic)
}

// ownerKeyPrefix returns the scan prefix for all ownership records.
func ownerKeyPrefix(namespace string) string {
	return fmt.Sprintf("dyad:%s:owner:", namespace)
}

// PeerKey returns the Redis key holding the fetch address of a rank.
// Pattern: dyad:{namespace}:peer:{rank}
func PeerKey(namespace string, rank uint32) string {
	return fmt.Sprintf("dyad:%s:peer:%d", namespace, rank)
}

// RankCounterKey returns the Redis key of the rank allocation counter.
// Pattern: dyad:{namespace}:ranks
func RankCounterKey(namespace string) string {
	return fmt.Sprintf("dyad:%s:ranks", namespace)
}

// KeyEventsChannel returns the Pub/Sub channel on which key creations are
// announced. Wait-create lookups subscribe here to wake up without polling.
// Pattern: dyad:{namespace}:key_events
func KeyEventsChannel(namespace string) string {
	return fmt.Sprintf("dyad:%s:key_events", namespace)
}

// BarrierKey returns the Redis key of a named barrier's participant counter.
// Pattern: dyad:{namespace}:barrier:{name}
func BarrierKey(namespace, name string) string {
	return fmt.Sprintf("dyad:%s:barrier:%s", namespace, name)
}

// BarrierChannel returns the Pub/Sub channel used to release barrier waiters.
// Pattern: dyad:{namespace}:barrier:{name}:events
func BarrierChannel(namespace, name string) string {
	return fmt.Sprintf("dyad:%s:barrier:%s:events", namespace, name)
}
