package dyad

import (
	"log"
	"sync/atomic"

	"github.com/dyad-io/dyad/pkg/fetch"
	"github.com/dyad-io/dyad/pkg/kvs"
)

// Ctx is the coordination context created once per process before any
// application I/O. A nil KVS handle puts every hook into pass-through.
//
// The original keeps one context per thread; Go has no thread-local storage
// and goroutines migrate between threads, so the context is process-wide and
// the re-entrancy flag is atomic. Nested I/O performed by the coordinator
// always goes through the real-function table directly, so correctness does
// not hinge on the flag; it additionally turns hooks observed concurrently
// into pass-through while a coordination body runs.
type Ctx struct {
	initialized   bool
	debug         bool
	check         bool
	sharedStorage bool
	syncDir       bool

	keyDepth uint32
	keyBins  uint32

	kvsNamespace string

	// kvs is the transport handle; nil means degraded pass-through mode.
	kvs *kvs.Client

	rank uint32

	// reenter is true while hooks may coordinate; cleared for the duration
	// of any hook body that performs its own I/O.
	reenter atomic.Bool

	syncStarted bool

	// fetchSrv is the embedded producer-side fetch server, if this process
	// is a producer; nil otherwise.
	fetchSrv *fetch.Server
}

// Rank returns this process's rank in the job.
func (c *Ctx) Rank() uint32 {
	return c.rank
}

// Initialized reports whether init completed.
func (c *Ctx) Initialized() bool {
	return c.initialized
}

// active reports whether coordination may run right now.
func (c *Ctx) active() bool {
	return c != nil && c.kvs != nil && c.reenter.Load()
}

// debugf logs only when debug output is enabled.
func (c *Ctx) debugf(format string, args ...any) {
	if c != nil && c.debug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// global holds the process-wide context. Hooks read it lock-free; Init and
// Finalize swap it.
var global atomic.Pointer[Ctx]

// current returns the process context, or nil before Init / after Finalize.
func current() *Ctx {
	return global.Load()
}
