package bridge

import (
	"fmt"
	"sync"

	"github.com/objlink/objlink/wire"
)

// Resource is the host-side proxy for a worker-side resource value: a typed
// handle with no class, no members, and no operations beyond identity. It
// participates in reference-lifetime tracking exactly like an object.
type Resource struct {
	bridge *Bridge
	typ    string
	handle wire.Handle

	closeOnce sync.Once
}

// Type returns the worker's resource type name.
func (r *Resource) Type() string { return r.typ }

// Handle returns the worker-issued identity of the resource.
func (r *Resource) Handle() wire.Handle { return r.handle }

func (r *Resource) ref() wire.Value {
	return wire.ResourceRef(r.typ, r.handle)
}

// Close ends this proxy's claim on the worker-side resource.
func (r *Resource) Close() error {
	r.closeOnce.Do(func() {
		r.bridge.reg.Release(r.handle)
	})
	return nil
}

func (r *Resource) String() string {
	return fmt.Sprintf("<resource %s #%s>", r.typ, r.handle)
}
