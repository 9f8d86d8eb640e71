// Package objlink provides a remote-object bridge between a Go host and a
// worker process exposing a foreign object model.
//
// The host and worker communicate over two byte streams (typically pipes)
// using a line-delimited JSON protocol. The host sends one command per line
// and blocks for exactly one reply; replies carry either a result or a
// worker-side fault. Values cross the boundary as tagged wire values, and
// worker-side objects and resources are represented locally by lightweight
// proxies addressed by worker-issued handles.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	objlink/             Root package with the stream contract for process glue
//	├── bridge/          High-level API: calls, proxies, class materialization
//	├── session/         Line framing over the two streams, failure detection
//	├── wire/            Tagged wire values and the value codec
//	├── registry/        Remote reference lifetimes and distributed collection
//	├── proc/            Worker process launch glue
//	├── config/          YAML configuration for the CLI
//	├── metrics/         Prometheus instrumentation
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Launch a worker and call into it:
//
//	worker, err := proc.Launch([]string{"php", "server.php"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Close()
//
//	b := bridge.New(worker)
//	defer b.Close()
//
//	cls, err := b.ResolveClass("ArrayObject")
//	obj, err := b.New("ArrayObject", "a", "b")
//	n, err := obj.Count()
//
// # Reference Lifetimes
//
// Proxies do not pin worker-side entities forever. Calling Close on a proxy
// (or letting it become unreachable) queues its handle for collection; the
// queue piggybacks on the next outgoing command and entries are retired only
// once the worker acknowledges them. Decoding the same handle twice within a
// session always yields the same proxy instance.
//
// # Concurrency
//
// The protocol has no request ids, so a Bridge serializes calls internally:
// one command is in flight at a time and concurrent callers queue on a mutex.
// Independent bridges (independent worker processes) are fully concurrent
// with respect to each other. Values are never portable between bridges.
//
// # Failure Model
//
// Worker-reported faults decode into errors the caller can catch and
// continue from. Transport failures (severed pipe, framing violation, empty
// read) are fatal to the session: the bridge is marked unusable and every
// subsequent call fails fast. See the errors package for the taxonomy.
package objlink
