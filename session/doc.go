// Package session frames bridge messages over a worker connection.
//
// A session owns two byte streams: an outbound command channel and an
// inbound reply channel. Each message is one self-delimited line of JSON:
//
//	out: {"cmd": <string>, "data": <payload>, "garbage": [<handle>, ...]}
//	in:  {"type": "result"|"exception", "data": <payload>, "collected": [<handle>, ...]}
//
// The session is strictly half-duplex: it has no queuing, no request ids,
// and no reply matching. The bridge engine layered above enforces the one
// command in flight discipline.
//
// # Failure
//
// Transport failure is terminal. A broken write, an empty or unterminated
// read, and a line that does not parse as a frame all move the session into
// a failed state; the original cause is preserved and every later Send or
// Receive fails fast with it. Unparseable lines are assumed to be the
// worker's diagnostic output and are forwarded to the diagnostics sink, and
// on any failure the worker's diagnostic channel is drained into the sink
// for a bounded window so its last words are not lost.
package session
