// Package proc launches and supervises worker processes. The worker's three
// standard streams carry the protocol: stdin receives commands, stdout
// returns replies, stderr is free-form diagnostics. A Worker satisfies the
// root Streams contract, so it plugs straight into session.New or
// bridge.New.
package proc
