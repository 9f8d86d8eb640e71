package bridge

import (
	"fmt"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/wire"
)

// Object is the host-side proxy for one worker-side object. Every operation
// is a round trip; the proxy holds no remote state beyond its class and
// handle.
//
// While the proxy is reachable, decoding its handle again yields this same
// instance. Close releases the handle deterministically; an unreachable
// proxy is released by the runtime's cleanup hook instead.
type Object struct {
	bridge *Bridge
	class  *ClassDescriptor
	handle wire.Handle

	closeOnce sync.Once
}

// Class returns the materialized descriptor of the object's class.
func (o *Object) Class() *ClassDescriptor { return o.class }

// Handle returns the worker-issued identity of the object.
func (o *Object) Handle() wire.Handle { return o.handle }

func (o *Object) ref() wire.Value {
	return wire.ObjectRef(o.class.Name, o.handle)
}

// Close ends this proxy's claim on the worker-side object. The release is
// advertised on the next outgoing command and confirmed by the worker.
// Closing twice is a no-op.
func (o *Object) Close() error {
	o.closeOnce.Do(func() {
		o.bridge.reg.Release(o.handle)
	})
	return nil
}

// Get reads a property.
func (o *Object) Get(name string) (any, error) {
	return o.bridge.callValue(cmdGetProperty, map[string]any{
		"obj":  o.ref(),
		"name": name,
	})
}

// Set writes a property.
func (o *Object) Set(name string, value any) error {
	ev, err := o.bridge.codec.Encode(value)
	if err != nil {
		return err
	}
	_, err = o.bridge.Call(cmdSetProperty, map[string]any{
		"obj":   o.ref(),
		"name":  name,
		"value": ev,
	})
	return err
}

// Unset removes a property.
func (o *Object) Unset(name string) error {
	_, err := o.bridge.Call(cmdUnsetProperty, map[string]any{
		"obj":  o.ref(),
		"name": name,
	})
	return err
}

// CallMethod invokes a method on the object and returns the decoded result.
func (o *Object) CallMethod(name string, args ...any) (any, error) {
	encoded, err := o.bridge.encodeArgs(args)
	if err != nil {
		return nil, err
	}
	return o.bridge.callValue(cmdCallMethod, map[string]any{
		"obj":  o.ref(),
		"name": name,
		"args": encoded,
	})
}

// Method returns a bound callable for name. Encoding it produces the
// worker's two-element callable form, so it can travel as a callback.
func (o *Object) Method(name string) *Method {
	return &Method{object: o, name: name}
}

// Invoke calls the object itself. Closures are callable unconditionally;
// anything else must declare the invocation method.
func (o *Object) Invoke(args ...any) (any, error) {
	if !o.class.Implements(capClosure) {
		if _, ok := o.class.Methods["__invoke"]; !ok {
			return nil, errors.Unsupported(o.class.Name, "invocation")
		}
	}
	encoded, err := o.bridge.encodeArgs(args)
	if err != nil {
		return nil, err
	}
	return o.bridge.callValue(cmdCallObj, map[string]any{
		"obj":  o.ref(),
		"args": encoded,
	})
}

// Repr returns the worker's debugging rendering of the object.
func (o *Object) Repr() (string, error) {
	var s string
	if err := o.bridge.callInto(cmdRepr, o.ref(), &s); err != nil {
		return "", err
	}
	return s, nil
}

// Str returns the worker's display rendering of the object.
func (o *Object) Str() (string, error) {
	var s string
	if err := o.bridge.callInto(cmdStr, o.ref(), &s); err != nil {
		return "", err
	}
	return s, nil
}

// String is local-only so logging a proxy never does I/O.
func (o *Object) String() string {
	return fmt.Sprintf("<object %s %s>", o.class.Name, o.handle)
}

// Count returns the element count of a Countable object.
func (o *Object) Count() (int64, error) {
	if !o.class.Implements(capCountable) {
		return 0, errors.Unsupported(o.class.Name, capCountable)
	}
	var n int64
	if err := o.bridge.callInto(cmdCount, o.ref(), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// HasItem reports whether key is a valid offset of an ArrayAccess object.
func (o *Object) HasItem(key any) (bool, error) {
	if !o.class.Implements(capArrayAccess) {
		return false, errors.Unsupported(o.class.Name, capArrayAccess)
	}
	ek, err := o.bridge.codec.Encode(key)
	if err != nil {
		return false, err
	}
	var has bool
	err = o.bridge.callInto(cmdHasItem, map[string]any{
		"obj":    o.ref(),
		"offset": ek,
	}, &has)
	return has, err
}

// GetItem reads one offset of an ArrayAccess object.
func (o *Object) GetItem(key any) (any, error) {
	if !o.class.Implements(capArrayAccess) {
		return nil, errors.Unsupported(o.class.Name, capArrayAccess)
	}
	ek, err := o.bridge.codec.Encode(key)
	if err != nil {
		return nil, err
	}
	return o.bridge.callValue(cmdGetItem, map[string]any{
		"obj":    o.ref(),
		"offset": ek,
	})
}

// SetItem writes one offset of an ArrayAccess object.
func (o *Object) SetItem(key, value any) error {
	if !o.class.Implements(capArrayAccess) {
		return errors.Unsupported(o.class.Name, capArrayAccess)
	}
	ek, err := o.bridge.codec.Encode(key)
	if err != nil {
		return err
	}
	ev, err := o.bridge.codec.Encode(value)
	if err != nil {
		return err
	}
	_, err = o.bridge.Call(cmdSetItem, map[string]any{
		"obj":    o.ref(),
		"offset": ek,
		"value":  ev,
	})
	return err
}

// DelItem removes one offset of an ArrayAccess object.
func (o *Object) DelItem(key any) error {
	if !o.class.Implements(capArrayAccess) {
		return errors.Unsupported(o.class.Name, capArrayAccess)
	}
	ek, err := o.bridge.codec.Encode(key)
	if err != nil {
		return err
	}
	_, err = o.bridge.Call(cmdDelItem, map[string]any{
		"obj":    o.ref(),
		"offset": ek,
	})
	return err
}

// Iterate starts iteration over a Traversable object. The worker hands back
// an iterator object that Next steps through.
func (o *Object) Iterate() (*Iterator, error) {
	if !o.class.Implements(capTraversable) && !o.class.Implements(capIterator) {
		return nil, errors.Unsupported(o.class.Name, capTraversable)
	}
	v, err := o.bridge.callValue(cmdStartIteration, o.ref())
	if err != nil {
		return nil, err
	}
	cursor, ok := v.(*Object)
	if !ok {
		return nil, errors.New(errors.PhaseCall, errors.KindProtocol).
			Command(cmdStartIteration).
			Detail("iteration did not produce an iterator object").
			Build()
	}
	return &Iterator{cursor: cursor}, nil
}

// Throwable reports whether the object can travel as a fault value.
func (o *Object) Throwable() bool {
	return o.class.Implements(capThrowable)
}

// Method is a bound method: an object plus a method name, usable as a value.
type Method struct {
	object *Object
	name   string
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Object returns the receiver the method is bound to.
func (m *Method) Object() *Object { return m.object }

// Call invokes the bound method.
func (m *Method) Call(args ...any) (any, error) {
	return m.object.CallMethod(m.name, args...)
}

func (m *Method) String() string {
	return fmt.Sprintf("<method %s.%s>", m.object.class.Name, m.name)
}

// Iterator steps through a worker-side iteration. Each Next is one round
// trip returning the current key/value pair.
type Iterator struct {
	cursor *Object
	done   bool
}

// Next advances the iteration. ok is false once the sequence is exhausted.
func (it *Iterator) Next() (key, value any, ok bool, err error) {
	if it.done {
		return nil, nil, false, nil
	}

	raw, err := it.cursor.bridge.Call(cmdNextIteration, it.cursor.ref())
	if err != nil {
		return nil, nil, false, err
	}

	var step []json.RawMessage
	if err := jsonAPI.Unmarshal(raw, &step); err != nil || len(step) != 3 {
		return nil, nil, false, errors.New(errors.PhaseCall, errors.KindProtocol).
			Command(cmdNextIteration).
			Detail("iteration step is not a [more, key, value] triple").
			Build()
	}

	var more bool
	if err := jsonAPI.Unmarshal(step[0], &more); err != nil {
		return nil, nil, false, errors.New(errors.PhaseCall, errors.KindProtocol).
			Command(cmdNextIteration).
			Detail("iteration continuation flag is not a boolean").
			Cause(err).
			Build()
	}
	if !more {
		it.done = true
		return nil, nil, false, nil
	}

	key, err = decodeRaw(it.cursor.bridge, cmdNextIteration, step[1])
	if err != nil {
		return nil, nil, false, err
	}
	value, err = decodeRaw(it.cursor.bridge, cmdNextIteration, step[2])
	if err != nil {
		return nil, nil, false, err
	}
	return key, value, true, nil
}

// Close releases the worker-side iterator.
func (it *Iterator) Close() error {
	it.done = true
	return it.cursor.Close()
}

func decodeRaw(b *Bridge, cmd string, raw json.RawMessage) (any, error) {
	var wv wire.Value
	if err := jsonAPI.Unmarshal(raw, &wv); err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindProtocol).
			Command(cmd).
			Detail("payload is not a wire value").
			Cause(err).
			Build()
	}
	return b.codec.Decode(wv)
}
