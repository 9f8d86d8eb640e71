package bridge

import (
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/wire"
)

// TypeInfo is the worker's declared type for a parameter or return value.
type TypeInfo struct {
	Name     string `json:"name"`
	IsClass  bool   `json:"isClass"`
	Nullable bool   `json:"nullable"`
}

// ParamInfo describes one parameter of a worker function or method.
type ParamInfo struct {
	Name       string    `json:"name"`
	Type       *TypeInfo `json:"type"`
	Default    any       `json:"-"`
	HasDefault bool      `json:"hasDefault"`
	Optional   bool      `json:"isOptional"`
	Variadic   bool      `json:"variadic"`
}

// MethodInfo describes one method as declared by the worker. Owner names the
// class that actually declared it; inherited entries keep their declaring
// class so inheritance stays visible.
type MethodInfo struct {
	Name    string
	Doc     string
	Owner   string
	Params  []ParamInfo
	Returns *TypeInfo
	Static  bool
}

// PropertyInfo describes one declared property.
type PropertyInfo struct {
	Name string
	Doc  string
}

// ClassDescriptor is the host-side materialization of a worker class: its
// canonical name, minimized ancestor set, and declared members. Descriptors
// are session-scoped and deduplicated, so two spellings of one class ("Foo"
// and "\Foo") share a single descriptor instance.
type ClassDescriptor struct {
	bridge *Bridge

	Name       string
	Doc        string
	Parent     *ClassDescriptor
	Bases      []*ClassDescriptor
	Consts     map[string]any
	Properties map[string]PropertyInfo
	Methods    map[string]MethodInfo
	Abstract   bool
	Interface  bool
}

// Implements reports whether name appears anywhere in the class's ancestor
// graph, including the class itself. Capability checks (Countable,
// Traversable, ArrayAccess, Throwable, Closure) go through here.
func (d *ClassDescriptor) Implements(name string) bool {
	if d.Name == name {
		return true
	}
	for _, base := range d.Bases {
		if base.Implements(name) {
			return true
		}
	}
	return false
}

// DescendsFrom reports whether other is an ancestor of d (or d itself).
func (d *ClassDescriptor) DescendsFrom(other *ClassDescriptor) bool {
	if d == other {
		return true
	}
	for _, base := range d.Bases {
		if base.DescendsFrom(other) {
			return true
		}
	}
	return false
}

// New instantiates the class on the worker and returns the proxy.
func (d *ClassDescriptor) New(args ...any) (*Object, error) {
	return d.bridge.New(d.Name, args...)
}

// Method returns the declared method metadata, if any.
func (d *ClassDescriptor) Method(name string) (MethodInfo, bool) {
	m, ok := d.Methods[name]
	return m, ok
}

// Const returns a declared class constant.
func (d *ClassDescriptor) Const(name string) (any, bool) {
	v, ok := d.Consts[name]
	return v, ok
}

func (d *ClassDescriptor) String() string {
	return "<class " + d.Name + ">"
}

// classInfoDoc is the worker's class shape document. Container fields are
// raw because the worker reports empty mappings as empty lists.
type classInfoDoc struct {
	Name       string          `json:"name"`
	Doc        json.RawMessage `json:"doc"`
	Parent     json.RawMessage `json:"parent"`
	Interfaces []string        `json:"interfaces"`
	Consts     json.RawMessage `json:"consts"`
	Properties json.RawMessage `json:"properties"`
	Methods    json.RawMessage `json:"methods"`
	Abstract   bool            `json:"isAbstract"`
	Interface  bool            `json:"isInterface"`
}

type propertyDoc struct {
	Doc json.RawMessage `json:"doc"`
}

type methodDoc struct {
	Name    string          `json:"name"`
	Doc     json.RawMessage `json:"doc"`
	Owner   string          `json:"owner"`
	Params  []paramDoc      `json:"params"`
	Returns *TypeInfo       `json:"returnType"`
	Static  bool            `json:"static"`
}

type paramDoc struct {
	Name       string          `json:"name"`
	Type       *TypeInfo       `json:"type"`
	Default    json.RawMessage `json:"default"`
	HasDefault bool            `json:"hasDefault"`
	Optional   bool            `json:"isOptional"`
	Variadic   bool            `json:"variadic"`
}

// ResolveClass materializes the descriptor for name, fetching and caching it
// (and, recursively, its ancestors) on first use. An unresolvable name is an
// unknown_construct error and is never retried implicitly; the session stays
// healthy.
func (b *Bridge) ResolveClass(name string) (*ClassDescriptor, error) {
	b.mu.Lock()
	if cls, ok := b.classes[name]; ok {
		b.mu.Unlock()
		return cls, nil
	}
	b.mu.Unlock()

	var info classInfoDoc
	if err := b.callInto(cmdClassInfo, name, &info); err != nil {
		if errors.IsRemoteFault(err) {
			ue := errors.UnknownConstruct(name)
			ue.Cause = err
			return nil, ue
		}
		return nil, err
	}

	// Both spellings of one class share a descriptor.
	b.mu.Lock()
	if cls, ok := b.classes[info.Name]; ok {
		b.classes[name] = cls
		b.mu.Unlock()
		return cls, nil
	}
	b.mu.Unlock()

	cls := &ClassDescriptor{
		bridge:    b,
		Name:      info.Name,
		Doc:       optionalString(info.Doc),
		Abstract:  info.Abstract,
		Interface: info.Interface,
	}

	// Ancestors first; their commands run before this descriptor is cached,
	// which is safe because inheritance cannot be cyclic.
	if parent := optionalString(info.Parent); parent != "" {
		p, err := b.ResolveClass(parent)
		if err != nil {
			return nil, err
		}
		cls.Parent = p
		cls.Bases = append(cls.Bases, p)
	}
	for _, iface := range info.Interfaces {
		i, err := b.ResolveClass(iface)
		if err != nil {
			return nil, err
		}
		cls.Bases = append(cls.Bases, i)
	}
	cls.Bases = minimizeBases(cls.Bases)

	if err := parseMembers(b, cls, &info); err != nil {
		return nil, err
	}

	b.mu.Lock()
	// A concurrent call may have raced us here; keep the first descriptor.
	if prior, ok := b.classes[info.Name]; ok {
		cls = prior
	} else {
		b.classes[info.Name] = cls
	}
	b.classes[name] = cls
	b.mu.Unlock()

	Logger().Debug("materialized class",
		zap.String("session", b.sess.ID()),
		zap.String("class", cls.Name),
		zap.Int("methods", len(cls.Methods)))
	return cls, nil
}

func parseMembers(b *Bridge, cls *ClassDescriptor, info *classInfoDoc) error {
	consts := map[string]json.RawMessage{}
	if err := lenientMap(info.Consts, &consts); err != nil {
		return errors.Undecodable([]string{cls.Name, "consts"}, err.Error())
	}
	cls.Consts = make(map[string]any, len(consts))
	for k, raw := range consts {
		var v any
		if err := jsonAPI.Unmarshal(raw, &v); err != nil {
			return errors.Undecodable([]string{cls.Name, "consts", k}, err.Error())
		}
		cls.Consts[k] = v
	}

	props := map[string]propertyDoc{}
	if err := lenientMap(info.Properties, &props); err != nil {
		return errors.Undecodable([]string{cls.Name, "properties"}, err.Error())
	}
	cls.Properties = make(map[string]PropertyInfo, len(props))
	for k, p := range props {
		cls.Properties[k] = PropertyInfo{Name: k, Doc: optionalString(p.Doc)}
	}

	methods := map[string]methodDoc{}
	if err := lenientMap(info.Methods, &methods); err != nil {
		return errors.Undecodable([]string{cls.Name, "methods"}, err.Error())
	}
	cls.Methods = make(map[string]MethodInfo, len(methods))
	for k, m := range methods {
		params, err := b.parseParams(m.Params)
		if err != nil {
			return err
		}
		cls.Methods[k] = MethodInfo{
			Name:    k,
			Doc:     optionalString(m.Doc),
			Owner:   m.Owner,
			Params:  params,
			Returns: m.Returns,
			Static:  m.Static,
		}
	}
	return nil
}

func (b *Bridge) parseParams(docs []paramDoc) ([]ParamInfo, error) {
	params := make([]ParamInfo, 0, len(docs))
	for _, p := range docs {
		info := ParamInfo{
			Name:       p.Name,
			Type:       p.Type,
			HasDefault: p.HasDefault,
			Optional:   p.Optional,
			Variadic:   p.Variadic,
		}
		if p.HasDefault && len(p.Default) > 0 {
			var wv wire.Value
			if err := jsonAPI.Unmarshal(p.Default, &wv); err == nil {
				if v, err := b.codec.Decode(wv); err == nil {
					info.Default = v
				}
				// An undecodable default only costs metadata, not the
				// method itself.
			}
		}
		params = append(params, info)
	}
	return params, nil
}

// minimizeBases drops any base already implied by another, keeping the most
// specific ancestors. Iterator implies Traversable, so a class declaring
// both keeps only Iterator.
func minimizeBases(bases []*ClassDescriptor) []*ClassDescriptor {
	out := make([]*ClassDescriptor, 0, len(bases))
	for _, b := range bases {
		redundant := false
		for _, other := range bases {
			if other != b && other.DescendsFrom(b) {
				redundant = true
				break
			}
		}
		if !redundant && !containsBase(out, b) {
			out = append(out, b)
		}
	}
	return out
}

func containsBase(bases []*ClassDescriptor, b *ClassDescriptor) bool {
	for _, x := range bases {
		if x == b {
			return true
		}
	}
	return false
}

// optionalString reads a field the worker reports as string|false|null.
func optionalString(raw json.RawMessage) string {
	var s string
	if len(raw) > 0 && jsonAPI.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// lenientMap unmarshals a mapping field that the worker renders as [] when
// empty. null, false, and [] all mean "no entries".
func lenientMap(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	switch string(raw) {
	case "null", "false", "[]":
		return nil
	}
	return jsonAPI.Unmarshal(raw, out)
}
