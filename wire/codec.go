package wire

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/objlink/objlink/errors"
)

// Env supplies the session-scoped behavior the codec cannot know on its own:
// recognizing remote values during encode and producing identity-preserving
// proxies during decode. The bridge implements it; a nil Env yields a pure
// scalar codec that rejects remote tags.
type Env interface {
	// EncodeRemote reports whether v is a remote value (proxy, class,
	// callable) and returns its wire form. ok is false when v is not
	// remote, which sends the encoder down the native branches.
	EncodeRemote(v any) (val Value, ok bool, err error)

	// DecodeObject returns the proxy for a class/handle pair, reusing a
	// live proxy when one exists.
	DecodeObject(class string, h Handle) (any, error)

	// DecodeResource returns the proxy for a resource type/handle pair.
	DecodeResource(typ string, h Handle) (any, error)
}

// Codec converts native values to and from tagged wire values.
type Codec struct {
	env Env
}

// NewCodec returns a codec bound to env. env may be nil for scalar-only use.
func NewCodec(env Env) *Codec {
	return &Codec{env: env}
}

// Encode converts a native value into its tagged wire representation.
// Every value must resolve to exactly one tag; ambiguous shapes are
// rejected rather than coerced.
func (c *Codec) Encode(v any) (Value, error) {
	return c.encode(v, nil)
}

func (c *Codec) encode(v any, path []string) (Value, error) {
	if v == nil {
		return Null(), nil
	}

	// Remote values first: proxies must never fall through to the
	// structural branches.
	if c.env != nil {
		if wv, ok, err := c.env.EncodeRemote(v); err != nil {
			return Value{}, err
		} else if ok {
			return wv, nil
		}
	}

	switch x := v.(type) {
	case Value:
		return x, nil
	case bool:
		return Boolean(x), nil
	case string:
		if utf8.ValidString(x) {
			return String(x), nil
		}
		// The worker's strings are byte arrays; route invalid text
		// through the binary-safe branch instead of corrupting it.
		return BytesValue([]byte(x)), nil
	case []byte:
		return BytesValue(x), nil
	case int:
		return Integer(int64(x)), nil
	case int8:
		return Integer(int64(x)), nil
	case int16:
		return Integer(int64(x)), nil
	case int32:
		return Integer(int64(x)), nil
	case int64:
		return Integer(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Value{}, errors.Unencodable(path, "unsigned value overflows the wire integer")
		}
		return Integer(int64(x)), nil
	case uint8:
		return Integer(int64(x)), nil
	case uint16:
		return Integer(int64(x)), nil
	case uint32:
		return Integer(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, errors.Unencodable(path, "unsigned value overflows the wire integer")
		}
		return Integer(int64(x)), nil
	case float32:
		return Double(float64(x)), nil
	case float64:
		return Double(x), nil
	case *Array:
		return c.encodeArray(x, path)
	case []any:
		items := make([]Item, 0, len(x))
		for i, elem := range x {
			key := strconv.Itoa(i)
			ev, err := c.encode(elem, append(path, key))
			if err != nil {
				return Value{}, err
			}
			items = append(items, Item{Key: key, Value: ev})
		}
		return ArrayValue(items), nil
	case map[string]any:
		// Plain maps have no order; sort keys so encoding is stable.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]Item, 0, len(keys))
		for _, k := range keys {
			ev, err := c.encode(x[k], append(path, k))
			if err != nil {
				return Value{}, err
			}
			items = append(items, Item{Key: k, Value: ev})
		}
		return ArrayValue(items), nil
	case map[any]any:
		return Value{}, errors.Unencodable(path,
			"mapping with dynamic key types is ambiguous; use *wire.Array")
	case error:
		return Value{}, errors.Unencodable(path, "errors do not cross the wire; encode a worker exception object instead")
	default:
		return Value{}, errors.Unencodable(path, fmt.Sprintf("no wire representation for %T", v))
	}
}

func (c *Codec) encodeArray(a *Array, path []string) (Value, error) {
	items := make([]Item, 0, a.Len())
	for _, k := range a.Keys() {
		elem, _ := a.Get(k)
		ev, err := c.encode(elem, append(path, k))
		if err != nil {
			return Value{}, err
		}
		items = append(items, Item{Key: k, Value: ev})
	}
	return ArrayValue(items), nil
}

// Decode converts a wire value back into a native value. Handles resolve
// through the Env so two decodes of one handle yield one proxy. Exception
// values never decode into a result: they surface as a remote fault error.
func (c *Codec) Decode(v Value) (any, error) {
	return c.decode(v, nil)
}

func (c *Codec) decode(v Value, path []string) (any, error) {
	switch v.Tag {
	case TagString:
		return v.Str, nil
	case TagBytes:
		// Byte-array strings come back as Go strings: a Go string holds
		// arbitrary bytes, and scalars must round-trip by value.
		return string(v.Bytes), nil
	case TagInteger:
		return v.Int, nil
	case TagDouble:
		return v.Float, nil
	case TagBoolean:
		return v.Bool, nil
	case TagNull:
		return nil, nil
	case TagArray:
		a := NewArray()
		for _, it := range v.Items {
			elem, err := c.decode(it.Value, append(path, it.Key))
			if err != nil {
				return nil, err
			}
			if err := a.Set(it.Key, elem); err != nil {
				return nil, errors.Undecodable(path, err.Error())
			}
		}
		return a, nil
	case TagObject:
		if c.env == nil {
			return nil, errors.Undecodable(path, "object handle with no session")
		}
		return c.env.DecodeObject(v.Class, v.Handle)
	case TagResource:
		if c.env == nil {
			return nil, errors.Undecodable(path, "resource handle with no session")
		}
		return c.env.DecodeResource(v.Class, v.Handle)
	case TagException:
		message := ""
		var remote any
		if v.Exc != nil {
			message = v.Exc.Message
			if v.Exc.Value != nil {
				decoded, err := c.decode(*v.Exc.Value, append(path, "exception"))
				if err != nil {
					// The message still describes the fault even when
					// its value cannot be rebuilt locally.
					return nil, errors.RemoteFault("", message, nil)
				}
				remote = decoded
			}
		}
		return nil, errors.RemoteFault("", message, remote)
	default:
		return nil, errors.Undecodable(path, fmt.Sprintf("unknown wire tag %q", v.Tag))
	}
}
