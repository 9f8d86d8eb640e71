package bridge

import (
	"strings"

	"github.com/objlink/objlink/errors"
)

// Kind classifies what a name resolves to on the worker.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "func"
	KindConstant Kind = "const"
	KindGlobal   Kind = "global"
)

// ResolveName asks the worker what name denotes and returns its kind along
// with the canonical spelling. Names the worker does not know are
// unknown_construct errors; the session stays healthy and the result is not
// cached, so a name that starts existing later resolves then.
func (b *Bridge) ResolveName(name string) (Kind, string, error) {
	var kind string
	if err := b.callInto(cmdResolveName, name, &kind); err != nil {
		return "", "", err
	}

	switch Kind(kind) {
	case KindClass:
		cls, err := b.ResolveClass(name)
		if err != nil {
			return "", "", err
		}
		return KindClass, cls.Name, nil
	case KindFunction:
		f, err := b.ResolveFunc(name)
		if err != nil {
			return "", "", err
		}
		return KindFunction, f.Name, nil
	case KindConstant:
		return KindConstant, name, nil
	case KindGlobal:
		return KindGlobal, name, nil
	case "none":
		return "", "", errors.UnknownConstruct(name)
	default:
		return "", "", errors.New(errors.PhaseResolve, errors.KindProtocol).
			Command(cmdResolveName).
			Detail("worker resolved %q to unknown kind %q", name, kind).
			Build()
	}
}

// Resolve returns the value a name denotes: a *ClassDescriptor, a *Function,
// a constant's value, or a global's value.
func (b *Bridge) Resolve(name string) (any, error) {
	kind, canonical, err := b.ResolveName(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindClass:
		return b.ResolveClass(canonical)
	case KindFunction:
		return b.ResolveFunc(canonical)
	case KindConstant:
		return b.GetConst(canonical)
	default:
		return b.GetGlobal(canonical)
	}
}

// New instantiates class name on the worker. Interfaces and abstract classes
// are rejected locally; no command is sent for them.
func (b *Bridge) New(name string, args ...any) (*Object, error) {
	cls, err := b.ResolveClass(name)
	if err != nil {
		return nil, err
	}
	if cls.Interface {
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidData).
			Command(cmdCreateObject).
			Detail("cannot instantiate interface %s", cls.Name).
			Build()
	}
	if cls.Abstract {
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidData).
			Command(cmdCreateObject).
			Detail("cannot instantiate abstract class %s", cls.Name).
			Build()
	}

	encoded, err := b.encodeArgs(args)
	if err != nil {
		return nil, err
	}
	v, err := b.callValue(cmdCreateObject, map[string]any{
		"name": cls.Name,
		"args": encoded,
	})
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, errors.New(errors.PhaseCall, errors.KindProtocol).
			Command(cmdCreateObject).
			Detail("construction did not produce an object").
			Build()
	}
	return obj, nil
}

// GetConst reads a worker constant. Constants are immutable on the worker,
// so the value is cached for the session.
func (b *Bridge) GetConst(name string) (any, error) {
	b.mu.Lock()
	if v, ok := b.consts[name]; ok {
		b.mu.Unlock()
		return v, nil
	}
	b.mu.Unlock()

	v, err := b.callValue(cmdGetConst, name)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.consts[name] = v
	b.mu.Unlock()
	return v, nil
}

// SetConst defines a new worker constant.
func (b *Bridge) SetConst(name string, value any) error {
	ev, err := b.codec.Encode(value)
	if err != nil {
		return err
	}
	if _, err := b.Call(cmdSetConst, map[string]any{
		"name":  name,
		"value": ev,
	}); err != nil {
		return err
	}
	b.mu.Lock()
	b.consts[name] = value
	b.mu.Unlock()
	return nil
}

// GetGlobal reads a worker global. Globals are mutable, so nothing is
// cached.
func (b *Bridge) GetGlobal(name string) (any, error) {
	return b.callValue(cmdGetGlobal, name)
}

// SetGlobal writes a worker global.
func (b *Bridge) SetGlobal(name string, value any) error {
	ev, err := b.codec.Encode(value)
	if err != nil {
		return err
	}
	_, err = b.Call(cmdSetGlobal, map[string]any{
		"name":  name,
		"value": ev,
	})
	return err
}

// ListClasses enumerates the worker's declared classes.
func (b *Bridge) ListClasses() ([]string, error) { return b.listNames(cmdListClasses) }

// ListFunctions enumerates the worker's declared functions.
func (b *Bridge) ListFunctions() ([]string, error) { return b.listNames(cmdListFuns) }

// ListConstants enumerates the worker's defined constants.
func (b *Bridge) ListConstants() ([]string, error) { return b.listNames(cmdListConsts) }

// ListGlobals enumerates the worker's global variables.
func (b *Bridge) ListGlobals() ([]string, error) { return b.listNames(cmdListGlobals) }

func (b *Bridge) listNames(cmd string) ([]string, error) {
	var names []string
	if err := b.callInto(cmd, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ListEverything enumerates every name directly under a namespace prefix.
func (b *Bridge) ListEverything(prefix string) ([]string, error) {
	var names []string
	if err := b.callInto(cmdListEverything, prefix, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Namespace is a view of the bridge rooted at a name prefix. Lookups join
// the prefix and a relative name with the worker's separator.
type Namespace struct {
	bridge *Bridge
	path   string
}

// Namespace returns a view rooted at path. Dots may be used in place of the
// worker's backslash separator.
func (b *Bridge) Namespace(path string) *Namespace {
	path = strings.ReplaceAll(path, ".", `\`)
	path = strings.Trim(path, `\`)
	return &Namespace{bridge: b, path: path}
}

// Path returns the namespace prefix.
func (ns *Namespace) Path() string { return ns.path }

func (ns *Namespace) qualify(name string) string {
	if ns.path == "" {
		return name
	}
	return ns.path + `\` + name
}

// Resolve resolves a name relative to the namespace.
func (ns *Namespace) Resolve(name string) (any, error) {
	return ns.bridge.Resolve(ns.qualify(name))
}

// Class materializes a class relative to the namespace.
func (ns *Namespace) Class(name string) (*ClassDescriptor, error) {
	return ns.bridge.ResolveClass(ns.qualify(name))
}

// Func materializes a function relative to the namespace.
func (ns *Namespace) Func(name string) (*Function, error) {
	return ns.bridge.ResolveFunc(ns.qualify(name))
}

// Entries enumerates the names directly under the namespace.
func (ns *Namespace) Entries() ([]string, error) {
	return ns.bridge.ListEverything(ns.path)
}

func (ns *Namespace) String() string {
	return "<namespace " + ns.path + ">"
}
