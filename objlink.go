package objlink

import "io"

// Streams is the contract between the core bridge and whatever launches the
// worker. The core only needs something writable for outbound commands,
// something readable for inbound replies, and optionally a channel carrying
// the worker's diagnostic output.
type Streams interface {
	// Commands is the outbound command channel.
	Commands() io.Writer

	// Replies is the inbound reply channel.
	Replies() io.Reader

	// Diagnostics is the worker's diagnostic output, or nil if the glue
	// does not capture one. The session drains it when the transport fails
	// so the worker's last words reach the diagnostics sink.
	Diagnostics() io.Reader
}

// PipeStreams is a minimal Streams implementation over plain reader/writer
// pairs, useful for tests and for callers that wire pipes themselves.
type PipeStreams struct {
	In   io.Writer
	Out  io.Reader
	Diag io.Reader
}

func (p PipeStreams) Commands() io.Writer    { return p.In }
func (p PipeStreams) Replies() io.Reader     { return p.Out }
func (p PipeStreams) Diagnostics() io.Reader { return p.Diag }
