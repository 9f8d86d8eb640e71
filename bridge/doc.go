// Package bridge implements the host side of the remote-object protocol: a
// request/response engine over one session, proxies for worker-side objects,
// resources, and functions, and a materializer that turns the worker's class
// shape documents into session-scoped descriptors.
//
// The transport is strictly half-duplex. Every operation is one command and
// one reply, serialized by the bridge; there is no pipelining and no
// out-of-order completion. Garbage collection piggybacks on this traffic:
// each outgoing command carries the handles whose proxies have died, and
// each reply confirms the handles the worker actually released.
//
// Faults reported by the worker surface as remote_fault errors carrying the
// decoded foreign error value; they leave the session healthy. Transport
// failures, framing violations, and timeouts are terminal: the session is
// marked failed and every later call reports it.
package bridge
