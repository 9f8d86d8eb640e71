package bridge

import (
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/objlink/objlink"
	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/metrics"
	"github.com/objlink/objlink/registry"
	"github.com/objlink/objlink/session"
	"github.com/objlink/objlink/wire"
)

var jsonAPI = json.ConfigCompatibleWithStandardLibrary

// Bridge drives one worker connection: it serializes command/reply exchanges
// over the session, piggybacks garbage collection on every command, and keeps
// the session-scoped caches (classes, functions, constants) and the proxy
// registry.
//
// A Bridge is safe for concurrent use; the transport is half-duplex, so
// concurrent calls queue behind one another.
type Bridge struct {
	sess  *session.Session
	codec *wire.Codec
	reg   *registry.Registry
	met   *metrics.Metrics

	callTimeout time.Duration

	// callMu keeps the wire half-duplex: one command, one reply. Never held
	// while decoding a payload, because decoding can issue nested commands
	// (class materialization).
	callMu sync.Mutex

	mu      sync.Mutex
	classes map[string]*ClassDescriptor
	funcs   map[string]*Function
	consts  map[string]any
}

// Option configures a Bridge.
type Option func(*Bridge, *[]session.Option)

// WithCallTimeout bounds how long one exchange may wait for the worker's
// reply. After a timeout the reply stream is in an unknown state, so the
// session is marked failed and every later call reports it as closed.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Bridge, _ *[]session.Option) { b.callTimeout = d }
}

// WithMetrics attaches a collector set to the bridge.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge, _ *[]session.Option) { b.met = m }
}

// WithSessionOptions forwards options to the underlying session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(_ *Bridge, so *[]session.Option) { *so = append(*so, opts...) }
}

// New connects a bridge to a worker reachable over streams.
func New(streams objlink.Streams, opts ...Option) *Bridge {
	b := &Bridge{
		reg:     registry.New(),
		classes: make(map[string]*ClassDescriptor),
		funcs:   make(map[string]*Function),
		consts:  make(map[string]any),
	}
	var sessOpts []session.Option
	for _, opt := range opts {
		opt(b, &sessOpts)
	}
	b.sess = session.New(streams, sessOpts...)
	b.codec = wire.NewCodec(b)

	Logger().Debug("bridge created", zap.String("session", b.sess.ID()))
	return b
}

// Session returns the underlying session, mainly for log correlation.
func (b *Bridge) Session() *session.Session { return b.sess }

// Registry exposes the proxy registry for inspection.
func (b *Bridge) Registry() *registry.Registry { return b.reg }

// Close marks the bridge unusable and drops all proxy tracking. It does not
// terminate the worker; the process glue owns that.
func (b *Bridge) Close() error {
	b.reg.Reset()
	return b.sess.Close()
}

// Call performs one command/reply exchange and returns the reply's raw data
// payload. A fault reply comes back as a remote_fault error carrying the
// decoded foreign error value.
func (b *Bridge) Call(cmd string, data any) (json.RawMessage, error) {
	frame, err := b.exchange(cmd, data)
	if err != nil {
		return nil, err
	}
	if frame.Type == session.FrameException {
		// Decoded outside the exchange lock: rebuilding the fault value can
		// require nested classInfo commands.
		return nil, b.decodeFault(cmd, frame.Data)
	}
	return frame.Data, nil
}

// exchange holds the half-duplex lock across one send and one receive. It
// never decodes payloads.
func (b *Bridge) exchange(cmd string, data any) (*session.Frame, error) {
	b.callMu.Lock()
	defer b.callMu.Unlock()

	start := time.Now()
	garbage := b.reg.PendingGarbage()

	if err := b.sess.Send(cmd, data, garbage); err != nil {
		if errors.IsConnectionLost(err) {
			b.reg.Reset()
		}
		b.met.ObserveCall(cmd, metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	frame, err := b.receive(cmd)
	if err != nil {
		if errors.IsConnectionLost(err) || errors.IsTimeout(err) {
			b.reg.Reset()
		}
		b.met.ObserveCall(cmd, metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	b.reg.Acknowledge(frame.Collected)
	b.met.AddCollected(len(frame.Collected))
	b.met.SetPending(b.reg.PendingCount())

	outcome := metrics.OutcomeResult
	if frame.Type == session.FrameException {
		outcome = metrics.OutcomeFault
	}
	b.met.ObserveCall(cmd, outcome, time.Since(start))
	return frame, nil
}

func (b *Bridge) receive(cmd string) (*session.Frame, error) {
	if b.callTimeout <= 0 {
		return b.sess.Receive()
	}

	type reply struct {
		frame *session.Frame
		err   error
	}
	ch := make(chan reply, 1)
	go func() {
		f, err := b.sess.Receive()
		ch <- reply{frame: f, err: err}
	}()

	select {
	case r := <-ch:
		return r.frame, r.err
	case <-time.After(b.callTimeout):
		// The reply may still arrive, but there is no way to pair it with a
		// command anymore. The session is done.
		err := errors.Timeout(cmd, "no reply within "+b.callTimeout.String())
		b.sess.Fail(err)
		Logger().Warn("call timed out",
			zap.String("session", b.sess.ID()),
			zap.String("cmd", cmd),
			zap.Duration("timeout", b.callTimeout))
		return nil, err
	}
}

// decodeFault turns an exception frame's payload into a remote_fault error.
func (b *Bridge) decodeFault(cmd string, data json.RawMessage) error {
	var payload struct {
		Value   json.RawMessage `json:"value"`
		Message string          `json:"message"`
	}
	if err := jsonAPI.Unmarshal(data, &payload); err != nil {
		return errors.New(errors.PhaseCall, errors.KindProtocol).
			Command(cmd).
			Detail("malformed exception payload").
			Cause(err).
			Build()
	}

	var remote any
	if len(payload.Value) > 0 && string(payload.Value) != "null" {
		var wv wire.Value
		if err := jsonAPI.Unmarshal(payload.Value, &wv); err == nil {
			if decoded, err := b.codec.Decode(wv); err == nil {
				remote = decoded
			}
			// A fault value that cannot be rebuilt locally still faults;
			// the message alone has to do.
		}
	}
	return errors.RemoteFault(cmd, payload.Message, remote)
}

// callValue performs an exchange whose result payload is a wire value, and
// decodes it into a native value.
func (b *Bridge) callValue(cmd string, data any) (any, error) {
	raw, err := b.Call(cmd, data)
	if err != nil {
		return nil, err
	}
	var wv wire.Value
	if err := jsonAPI.Unmarshal(raw, &wv); err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindProtocol).
			Command(cmd).
			Detail("result is not a wire value").
			Cause(err).
			Build()
	}
	v, err := b.codec.Decode(wv)
	if err != nil {
		if fe, ok := asError(err); ok && fe.Kind == errors.KindRemoteFault && fe.Command == "" {
			fe.Command = cmd
		}
		return nil, err
	}
	return v, nil
}

// callInto performs an exchange whose result payload is plain JSON (name
// lists, class documents, flags) and unmarshals it into out.
func (b *Bridge) callInto(cmd string, data any, out any) error {
	raw, err := b.Call(cmd, data)
	if err != nil {
		return err
	}
	if err := jsonAPI.Unmarshal(raw, out); err != nil {
		return errors.New(errors.PhaseDecode, errors.KindProtocol).
			Command(cmd).
			Detail("unexpected result shape").
			Cause(err).
			Build()
	}
	return nil
}

// encodeArgs converts a native argument list into wire values.
func (b *Bridge) encodeArgs(args []any) ([]wire.Value, error) {
	out := make([]wire.Value, len(args))
	for i, a := range args {
		v, err := b.codec.Encode(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Encode exposes the session's encoder, mostly for tests and tooling.
func (b *Bridge) Encode(v any) (wire.Value, error) { return b.codec.Encode(v) }

// Decode exposes the session's decoder.
func (b *Bridge) Decode(v wire.Value) (any, error) { return b.codec.Decode(v) }

func asError(err error) (*errors.Error, bool) {
	var e *errors.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// EncodeRemote recognizes this session's proxies and renders their wire
// form. Part of the wire.Env contract.
func (b *Bridge) EncodeRemote(v any) (wire.Value, bool, error) {
	switch x := v.(type) {
	case *Object:
		if x.bridge != b {
			return wire.Value{}, false, errors.CrossSession("object " + x.class.Name)
		}
		return x.ref(), true, nil
	case *Resource:
		if x.bridge != b {
			return wire.Value{}, false, errors.CrossSession("resource " + x.typ)
		}
		return x.ref(), true, nil
	case *ClassDescriptor:
		if x.bridge != b {
			return wire.Value{}, false, errors.CrossSession("class " + x.Name)
		}
		// Classes travel by name.
		return wire.String(x.Name), true, nil
	case *Function:
		if x.bridge != b {
			return wire.Value{}, false, errors.CrossSession("function " + x.Name)
		}
		return wire.String(x.Name), true, nil
	case *Method:
		if x.object.bridge != b {
			return wire.Value{}, false, errors.CrossSession("method " + x.name)
		}
		// Bound methods use the worker's two-element callable form.
		return wire.ArrayValue([]wire.Item{
			{Key: "0", Value: x.object.ref()},
			{Key: "1", Value: wire.String(x.name)},
		}), true, nil
	}
	return wire.Value{}, false, nil
}

// DecodeObject materializes the class and returns the identity-preserved
// proxy for the handle. Part of the wire.Env contract.
func (b *Bridge) DecodeObject(class string, h wire.Handle) (any, error) {
	cls, err := b.ResolveClass(class)
	if err != nil {
		return nil, err
	}
	return registry.LookupOrCreate(b.reg, h, func() (*Object, error) {
		return &Object{bridge: b, class: cls, handle: h}, nil
	})
}

// DecodeResource returns the identity-preserved proxy for a resource handle.
// Part of the wire.Env contract.
func (b *Bridge) DecodeResource(typ string, h wire.Handle) (any, error) {
	return registry.LookupOrCreate(b.reg, h, func() (*Resource, error) {
		return &Resource{bridge: b, typ: typ, handle: h}, nil
	})
}
