package bridge

import (
	json "github.com/json-iterator/go"

	"github.com/objlink/objlink/errors"
)

// Function is a memoized proxy for a free worker-side function. Unlike
// objects it carries no handle; the name is the identity.
type Function struct {
	bridge *Bridge

	Name    string
	Doc     string
	Params  []ParamInfo
	Returns *TypeInfo
}

type funcInfoDoc struct {
	Name    string          `json:"name"`
	Doc     json.RawMessage `json:"doc"`
	Params  []paramDoc      `json:"params"`
	Returns *TypeInfo       `json:"returnType"`
}

// ResolveFunc materializes the proxy for a worker function, caching it under
// both the requested and the canonical spelling.
func (b *Bridge) ResolveFunc(name string) (*Function, error) {
	b.mu.Lock()
	if f, ok := b.funcs[name]; ok {
		b.mu.Unlock()
		return f, nil
	}
	b.mu.Unlock()

	var info funcInfoDoc
	if err := b.callInto(cmdFuncInfo, name, &info); err != nil {
		if errors.IsRemoteFault(err) {
			ue := errors.UnknownConstruct(name)
			ue.Cause = err
			return nil, ue
		}
		return nil, err
	}

	params, err := b.parseParams(info.Params)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.funcs[info.Name]; ok {
		b.funcs[name] = f
		return f, nil
	}
	f := &Function{
		bridge:  b,
		Name:    info.Name,
		Doc:     optionalString(info.Doc),
		Params:  params,
		Returns: info.Returns,
	}
	b.funcs[info.Name] = f
	b.funcs[name] = f
	return f, nil
}

// Call invokes the function with args and returns the decoded result.
func (f *Function) Call(args ...any) (any, error) {
	encoded, err := f.bridge.encodeArgs(args)
	if err != nil {
		return nil, err
	}
	return f.bridge.callValue(cmdCallFun, map[string]any{
		"name": f.Name,
		"args": encoded,
	})
}

func (f *Function) String() string {
	return "<function " + f.Name + ">"
}
