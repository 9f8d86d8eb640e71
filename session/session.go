package session

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/objlink/objlink"
	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/wire"
)

// Frame is one inbound reply record.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Collected []wire.Handle   `json:"collected"`
}

// Reply frame types the worker may send.
const (
	FrameResult    = "result"
	FrameException = "exception"
)

type request struct {
	Cmd     string        `json:"cmd"`
	Data    any           `json:"data"`
	Garbage []wire.Handle `json:"garbage"`
}

var jsonAPI = json.ConfigCompatibleWithStandardLibrary

// Session owns the two byte streams of one worker connection and frames
// messages as single-line JSON records. It detects transport failure and
// converts it into a terminal connection_lost state: once a send or receive
// fails, every later operation fails fast with the original cause attached.
//
// The session has no queuing and no reply matching. Callers (the bridge
// engine) must keep it half-duplex: one send, one receive, in that order.
type Session struct {
	id   string
	out  io.Writer
	in   *bufio.Reader
	diag io.Reader
	sink io.Writer

	drainWindow time.Duration

	mu     sync.Mutex
	failed error
	closed bool
}

// Option configures a Session.
type Option func(*Session)

// WithDiagnosticsSink routes worker diagnostic output (and any unframeable
// reply lines) to w instead of stderr.
func WithDiagnosticsSink(w io.Writer) Option {
	return func(s *Session) { s.sink = w }
}

// WithDrainWindow bounds how long a failing session waits for the worker's
// last diagnostic output before reporting the failure.
func WithDrainWindow(d time.Duration) Option {
	return func(s *Session) { s.drainWindow = d }
}

// New wraps a pair of connected streams in a session.
func New(streams objlink.Streams, opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		out:         streams.Commands(),
		in:          bufio.NewReader(streams.Replies()),
		diag:        streams.Diagnostics(),
		sink:        os.Stderr,
		drainWindow: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's log-correlation id.
func (s *Session) ID() string { return s.id }

// Send writes one outbound record: the command, its payload, and the
// handles whose collection the worker should be asked to confirm.
func (s *Session) Send(cmd string, data any, garbage []wire.Handle) error {
	if err := s.usable(); err != nil {
		return err
	}

	if garbage == nil {
		garbage = []wire.Handle{}
	}
	line, err := jsonAPI.Marshal(request{Cmd: cmd, Data: data, Garbage: garbage})
	if err != nil {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Command(cmd).
			Detail("marshal outbound record").
			Cause(err).
			Build()
	}
	line = append(line, '\n')

	if _, err := s.out.Write(line); err != nil {
		// A severed pipe usually means the worker died mid-sentence;
		// surface whatever it managed to say before reporting.
		s.drainDiagnostics()
		return s.fail(errors.ConnectionLost("write command "+cmd, err))
	}

	Logger().Debug("sent command",
		zap.String("session", s.id),
		zap.String("cmd", cmd),
		zap.Int("garbage", len(garbage)))
	return nil
}

// Receive blocks for one framed reply line.
//
// An empty read (stream closed, zero bytes, missing terminator) and a line
// that does not parse as a frame both kill the session: once framing is
// violated there is no way to resynchronize. Unparseable lines are treated
// as worker diagnostics and forwarded to the sink.
func (s *Session) Receive() (*Frame, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	line, err := s.in.ReadBytes('\n')
	if err != nil {
		// EOF with a partial line means the terminator never arrived;
		// that is just as dead as a zero-byte read.
		s.drainDiagnostics()
		return nil, s.fail(errors.ConnectionLost("read reply", err))
	}
	if len(trimEOL(line)) == 0 {
		s.drainDiagnostics()
		return nil, s.fail(errors.ConnectionLost("empty reply, worker closed the stream", nil))
	}

	var frame Frame
	if err := jsonAPI.Unmarshal(trimEOL(line), &frame); err != nil {
		// Not protocol, so it must be the worker talking past us.
		s.sink.Write(line)
		s.drainDiagnostics()
		return nil, s.fail(errors.ConnectionLost("reply is not a frame", err))
	}

	if frame.Type != FrameResult && frame.Type != FrameException {
		return nil, s.fail(errors.Protocol("unknown frame type "+frame.Type, nil))
	}

	Logger().Debug("received frame",
		zap.String("session", s.id),
		zap.String("type", frame.Type),
		zap.Int("collected", len(frame.Collected)))
	return &frame, nil
}

// Fail marks the session unusable with the given cause. The bridge uses it
// when a timed-out call leaves the framing in an unknown state.
func (s *Session) Fail(cause error) {
	s.fail(cause)
}

// Close marks the session unusable. It does not close the underlying
// streams; their owner (the process glue) does that.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Err returns the first fatal error, or nil while the session is healthy.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *Session) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed != nil {
		return errors.New(errors.PhaseCall, errors.KindClosed).
			Detail("session failed").
			Cause(s.failed).
			Build()
	}
	if s.closed {
		return errors.Closed("session closed")
	}
	return nil
}

func (s *Session) fail(cause error) error {
	s.mu.Lock()
	if s.failed == nil {
		s.failed = cause
	}
	s.mu.Unlock()

	Logger().Warn("session failed",
		zap.String("session", s.id),
		zap.Error(cause))
	return cause
}

// drainDiagnostics copies the worker's diagnostic channel to the sink for a
// bounded window so a dying worker's last output is not lost. The copy
// continues in the background; a closed stream ends it.
func (s *Session) drainDiagnostics() {
	if s.diag == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		io.Copy(s.sink, s.diag)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.drainWindow):
	}
}

func trimEOL(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
