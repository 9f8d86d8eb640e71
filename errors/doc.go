// Package errors provides structured error types for the bridge.
//
// Every error carries a Phase (where processing failed) and a Kind (what
// went wrong). The kinds form the bridge's failure taxonomy:
//
//	connection_lost    transport severed or framing desynchronized; fatal
//	protocol           reply violated the expected shape; fatal
//	remote_fault       worker executed the command and reported a fault;
//	                   carries the decoded foreign error value; catchable
//	unknown_construct  name resolution failed; local, non-fatal
//	cross_session      encode-time misuse of a foreign session's value
//	timeout            call deadline exceeded; the session becomes unusable
//	closed             session already failed or closed
//
// Only remote_fault and unknown_construct are meant to be routinely caught.
// The fatal kinds propagate and terminate the session, since the transport
// has no recovery path once framing is lost.
//
// Match errors with the predicates:
//
//	if errors.IsRemoteFault(err) {
//	    fault, _ := errors.AsRemoteFault(err)
//	    ...
//	}
package errors
