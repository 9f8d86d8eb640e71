package registry

import (
	"runtime"
	"sync"
	"weak"

	"github.com/objlink/objlink/wire"
)

// Registry tracks which worker-side handles have a live local proxy and
// which are waiting for the worker to confirm their release.
//
// The registry never keeps a proxy alive: it holds weak references and
// observes reachability. When a proxy becomes unreachable (or is released
// explicitly), its handle moves into the pending-collection set. The engine
// attaches that set to every outgoing command as the garbage field, and the
// worker's reply echoes the subset it actually released; only echoed entries
// leave the set, everything else is retried on the next command.
//
// Lookups, releases, and acknowledgments are mutex-guarded because cleanup
// hooks fire from the runtime's reclamation machinery, concurrently with an
// in-progress send.
type Registry struct {
	mu      sync.Mutex
	live    map[wire.Handle]*entry
	pending map[wire.Handle]struct{}
	gen     uint64
}

type entry struct {
	ref weakRef
	gen uint64
}

// weakRef erases the proxy type so one table can track objects and
// resources together.
type weakRef interface {
	value() any
}

type typedRef[T any] struct {
	p weak.Pointer[T]
}

func (r typedRef[T]) value() any {
	v := r.p.Value()
	if v == nil {
		return nil
	}
	return v
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		live:    make(map[wire.Handle]*entry),
		pending: make(map[wire.Handle]struct{}),
	}
}

// LookupOrCreate returns the live proxy for h, or constructs one via factory
// and begins observing its liveness. Within one session the same handle
// always yields the same proxy instance while that instance is reachable;
// creating a second proxy for a live handle is impossible by construction.
func LookupOrCreate[T any](r *Registry, h wire.Handle, factory func() (*T, error)) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.live[h]; ok {
		if v := e.ref.value(); v != nil {
			if p, ok := v.(*T); ok {
				return p, nil
			}
			// Same handle, different proxy shape. Handles are
			// worker-issued and typed (string hashes for objects,
			// numeric ids for resources), so this is a worker bug;
			// fall through and replace the entry.
		}
		// The proxy died but its cleanup has not fired yet. The new
		// proxy takes over the handle's lifetime; the stale cleanup is
		// disarmed by the generation bump and nothing is enqueued.
	}

	p, err := factory()
	if err != nil {
		return nil, err
	}

	r.gen++
	gen := r.gen
	r.live[h] = &entry{ref: typedRef[T]{p: weak.Make(p)}, gen: gen}
	runtime.AddCleanup(p, func(g uint64) { r.collect(h, g) }, gen)

	return p, nil
}

// collect is the liveness hook: the proxy for h at generation gen became
// unreachable. Advisory only; the handle waits in pending until the worker
// confirms.
func (r *Registry) collect(h wire.Handle, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.live[h]
	if !ok || e.gen != gen {
		// Released explicitly, or the handle was re-proxied after this
		// hook's proxy died. Either way someone else owns the lifetime.
		return
	}
	delete(r.live, h)
	r.pending[h] = struct{}{}
}

// Release deterministically ends a proxy's claim on its handle, queueing it
// for collection without waiting for the memory reclaimer. Proxies call this
// from Close; each guards against double release.
func (r *Registry) Release(h wire.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[h]; !ok {
		return
	}
	delete(r.live, h)
	r.pending[h] = struct{}{}
}

// PendingGarbage snapshots the handles awaiting worker confirmation, for
// piggybacking on the next outgoing command.
func (r *Registry) PendingGarbage() []wire.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return nil
	}
	out := make([]wire.Handle, 0, len(r.pending))
	for h := range r.pending {
		out = append(out, h)
	}
	return out
}

// Acknowledge removes the handles the worker confirmed it released. Entries
// the worker did not echo stay pending and ride the next command.
func (r *Registry) Acknowledge(handles []wire.Handle) {
	if len(handles) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range handles {
		delete(r.pending, h)
	}
}

// LiveCount returns the number of handles with a tracked proxy.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// PendingCount returns the size of the pending-collection set.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Reset discards all tracking state. Called when the session dies: the
// worker is gone or unreachable, so unconfirmed collection notices are moot.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = make(map[wire.Handle]*entry)
	r.pending = make(map[wire.Handle]struct{})
}
