// Package registry implements the distributed reference-lifetime protocol
// between host-side proxies and worker-side entities.
//
// The worker cannot inspect host-side reachability, so the registry bridges
// the gap in three steps:
//
//  1. Observe: every proxy created for a handle is tracked through a weak
//     reference plus a runtime cleanup hook. The registry notices death, it
//     never causes or prevents it.
//  2. Advertise: a dead (or explicitly released) proxy moves its handle into
//     the pending-collection set. The set piggybacks on the next outgoing
//     command as the garbage field; no dedicated round trip exists.
//  3. Confirm: the worker's reply echoes the handles it actually released.
//     Only echoed handles leave the set. Anything unconfirmed is retried on
//     the next command, which makes the notice/regeneration race benign:
//     the worker ignores collection requests for entities it still needs.
//
// Identity is handle-scoped: while a proxy for a handle is reachable,
// decoding that handle again returns the same proxy instance, never a
// second one.
//
// Pending entries have no expiry of their own; they live until confirmed or
// until the session dies, at which point Reset discards them together with
// everything else.
package registry
