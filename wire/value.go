package wire

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	json "github.com/json-iterator/go"

	"github.com/objlink/objlink/errors"
)

// Tag is the discriminant identifying which variant a wire value carries.
type Tag string

const (
	TagString    Tag = "string"
	TagBytes     Tag = "bytes"
	TagInteger   Tag = "integer"
	TagDouble    Tag = "double"
	TagBoolean   Tag = "boolean"
	TagNull      Tag = "NULL" // the worker reports null's type in caps
	TagArray     Tag = "array"
	TagObject    Tag = "object"
	TagResource  Tag = "resource"
	TagException Tag = "exception"
)

// Item is one ordered entry of an array value.
type Item struct {
	Key   string
	Value Value
}

// Fault is the payload of an exception value: the encoded foreign error and
// the worker's textual rendering of it.
type Fault struct {
	Value   *Value
	Message string
}

// Value is the tagged union every message payload is built from. Exactly one
// field is meaningful for a given Tag:
//
//	string     Str
//	bytes      Bytes
//	integer    Int
//	double     Float (NaN and ±Inf representable)
//	boolean    Bool
//	NULL       —
//	array      Items (ordered; list-shaped arrays use keys "0".."n-1")
//	object     Class, Handle
//	resource   Class (the resource type name), Handle
//	exception  Exc
type Value struct {
	Exc    *Fault
	Items  []Item
	Str    string
	Class  string
	Bytes  []byte
	Int    int64
	Float  float64
	Handle Handle
	Bool   bool
	Tag    Tag
}

// Constructors. Decoding and encoding always go through these shapes.

func String(s string) Value       { return Value{Tag: TagString, Str: s} }
func BytesValue(b []byte) Value   { return Value{Tag: TagBytes, Bytes: b} }
func Integer(n int64) Value       { return Value{Tag: TagInteger, Int: n} }
func Double(f float64) Value      { return Value{Tag: TagDouble, Float: f} }
func Boolean(b bool) Value        { return Value{Tag: TagBoolean, Bool: b} }
func Null() Value                 { return Value{Tag: TagNull} }
func ArrayValue(items []Item) Value { return Value{Tag: TagArray, Items: items} }

// ObjectRef names a worker-side object by class and handle.
func ObjectRef(class string, h Handle) Value {
	return Value{Tag: TagObject, Class: class, Handle: h}
}

// ResourceRef names a worker-side resource by type and handle.
func ResourceRef(typ string, h Handle) Value {
	return Value{Tag: TagResource, Class: typ, Handle: h}
}

// Exception wraps a foreign error value and its message.
func Exception(v *Value, message string) Value {
	return Value{Tag: TagException, Exc: &Fault{Value: v, Message: message}}
}

// listShaped reports whether items carry the keys "0".."n-1" in order.
func listShaped(items []Item) bool {
	for i, it := range items {
		if it.Key != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

var jsonAPI = json.ConfigCompatibleWithStandardLibrary

// MarshalJSON renders the value in its wire form {"type": tag, "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)

	if err := v.marshalTo(stream); err != nil {
		return nil, err
	}
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, stream.Buffered())
	copy(out, stream.Buffer())
	return out, nil
}

func (v Value) marshalTo(stream *json.Stream) error {
	stream.WriteObjectStart()
	stream.WriteObjectField("type")
	stream.WriteString(string(v.Tag))
	stream.WriteMore()
	stream.WriteObjectField("value")

	switch v.Tag {
	case TagString:
		stream.WriteString(v.Str)
	case TagBytes:
		stream.WriteString(base64.StdEncoding.EncodeToString(v.Bytes))
	case TagInteger:
		stream.WriteInt64(v.Int)
	case TagDouble:
		switch {
		case math.IsNaN(v.Float):
			stream.WriteString("NAN")
		case math.IsInf(v.Float, 1):
			stream.WriteString("INF")
		case math.IsInf(v.Float, -1):
			stream.WriteString("-INF")
		default:
			stream.WriteFloat64(v.Float)
		}
	case TagBoolean:
		stream.WriteBool(v.Bool)
	case TagNull:
		stream.WriteNil()
	case TagArray:
		if listShaped(v.Items) {
			stream.WriteArrayStart()
			for i, it := range v.Items {
				if i > 0 {
					stream.WriteMore()
				}
				if err := it.Value.marshalTo(stream); err != nil {
					return err
				}
			}
			stream.WriteArrayEnd()
		} else {
			stream.WriteObjectStart()
			for i, it := range v.Items {
				if i > 0 {
					stream.WriteMore()
				}
				stream.WriteObjectField(it.Key)
				if err := it.Value.marshalTo(stream); err != nil {
					return err
				}
			}
			stream.WriteObjectEnd()
		}
	case TagObject:
		stream.WriteObjectStart()
		stream.WriteObjectField("class")
		stream.WriteString(v.Class)
		stream.WriteMore()
		stream.WriteObjectField("hash")
		writeHandle(stream, v.Handle)
		stream.WriteObjectEnd()
	case TagResource:
		stream.WriteObjectStart()
		stream.WriteObjectField("type")
		stream.WriteString(v.Class)
		stream.WriteMore()
		stream.WriteObjectField("hash")
		writeHandle(stream, v.Handle)
		stream.WriteObjectEnd()
	case TagException:
		stream.WriteObjectStart()
		stream.WriteObjectField("value")
		if v.Exc != nil && v.Exc.Value != nil {
			if err := v.Exc.Value.marshalTo(stream); err != nil {
				return err
			}
		} else {
			stream.WriteNil()
		}
		stream.WriteMore()
		stream.WriteObjectField("message")
		if v.Exc != nil {
			stream.WriteString(v.Exc.Message)
		} else {
			stream.WriteString("")
		}
		stream.WriteObjectEnd()
	default:
		return errors.Unencodable(nil, fmt.Sprintf("unknown wire tag %q", v.Tag))
	}

	return nil
}

func writeHandle(stream *json.Stream, h Handle) {
	if h.Numeric() {
		stream.WriteInt64(h.Int())
		return
	}
	stream.WriteString(h.Text())
}

// UnmarshalJSON parses the wire form. Field order in the document does not
// matter; the value payload is parsed after the tag is known.
func (v *Value) UnmarshalJSON(data []byte) error {
	it := jsonAPI.BorrowIterator(data)
	defer jsonAPI.ReturnIterator(it)

	var tag Tag
	var raw []byte
	sawValue := false

	for field := it.ReadObject(); field != ""; field = it.ReadObject() {
		switch field {
		case "type":
			tag = Tag(it.ReadString())
		case "value":
			raw = it.SkipAndReturnBytes()
			sawValue = true
		default:
			it.Skip()
		}
	}
	if it.Error != nil {
		return errors.Undecodable(nil, it.Error.Error())
	}
	if tag == "" {
		return errors.Undecodable(nil, "wire value missing type tag")
	}
	if !sawValue {
		return errors.Undecodable(nil, "wire value missing value field")
	}

	parsed, err := parseTagged(tag, raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func parseTagged(tag Tag, raw []byte) (Value, error) {
	it := jsonAPI.BorrowIterator(raw)
	defer jsonAPI.ReturnIterator(it)

	fail := func(detail string) (Value, error) {
		return Value{}, errors.Undecodable(nil, fmt.Sprintf("%s tag: %s", tag, detail))
	}

	switch tag {
	case TagString:
		s := it.ReadString()
		if it.Error != nil {
			return fail(it.Error.Error())
		}
		return String(s), nil

	case TagBytes:
		s := it.ReadString()
		if it.Error != nil {
			return fail(it.Error.Error())
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fail("invalid base64: " + err.Error())
		}
		return BytesValue(b), nil

	case TagInteger:
		n := it.ReadInt64()
		if it.Error != nil {
			return fail(it.Error.Error())
		}
		return Integer(n), nil

	case TagDouble:
		if it.WhatIsNext() == json.StringValue {
			switch s := it.ReadString(); s {
			case "INF":
				return Double(math.Inf(1)), nil
			case "-INF":
				return Double(math.Inf(-1)), nil
			case "NAN":
				return Double(math.NaN()), nil
			default:
				return fail(fmt.Sprintf("unknown sentinel %q", s))
			}
		}
		f := it.ReadFloat64()
		if it.Error != nil {
			return fail(it.Error.Error())
		}
		return Double(f), nil

	case TagBoolean:
		b := it.ReadBool()
		if it.Error != nil {
			return fail(it.Error.Error())
		}
		return Boolean(b), nil

	case TagNull:
		return Null(), nil

	case TagArray:
		switch it.WhatIsNext() {
		case json.ArrayValue:
			var items []Item
			i := 0
			for it.ReadArray() {
				elem, err := unmarshalNested(it)
				if err != nil {
					return Value{}, err
				}
				items = append(items, Item{Key: strconv.Itoa(i), Value: elem})
				i++
			}
			if it.Error != nil {
				return fail(it.Error.Error())
			}
			return ArrayValue(items), nil
		case json.ObjectValue:
			// ReadObjectCB rather than a ReadObject loop: the worker can
			// produce "" as a legitimate array key.
			var items []Item
			var innerErr error
			it.ReadObjectCB(func(it *json.Iterator, key string) bool {
				elem, err := unmarshalNested(it)
				if err != nil {
					innerErr = err
					return false
				}
				items = append(items, Item{Key: key, Value: elem})
				return true
			})
			if innerErr != nil {
				return Value{}, innerErr
			}
			if it.Error != nil {
				return fail(it.Error.Error())
			}
			return ArrayValue(items), nil
		default:
			return fail("payload is neither a list nor a mapping")
		}

	case TagObject, TagResource:
		var class string
		var h Handle
		sawHandle := false
		for key := it.ReadObject(); key != ""; key = it.ReadObject() {
			switch key {
			case "class", "type":
				class = it.ReadString()
			case "hash", "id":
				if it.WhatIsNext() == json.NumberValue {
					h = IntHandle(it.ReadInt64())
				} else {
					h = StringHandle(it.ReadString())
				}
				sawHandle = true
			default:
				it.Skip()
			}
		}
		if it.Error != nil {
			return fail(it.Error.Error())
		}
		if class == "" || !sawHandle {
			return fail("missing class or handle")
		}
		if tag == TagObject {
			return ObjectRef(class, h), nil
		}
		return ResourceRef(class, h), nil

	case TagException:
		var inner *Value
		var message string
		for key := it.ReadObject(); key != ""; key = it.ReadObject() {
			switch key {
			case "value":
				if it.WhatIsNext() == json.NilValue {
					it.ReadNil()
					continue
				}
				elem, err := unmarshalNested(it)
				if err != nil {
					return Value{}, err
				}
				inner = &elem
			case "message":
				message = it.ReadString()
			default:
				it.Skip()
			}
		}
		if it.Error != nil {
			return fail(it.Error.Error())
		}
		return Exception(inner, message), nil

	default:
		return Value{}, errors.Undecodable(nil, fmt.Sprintf("unknown wire tag %q", tag))
	}
}

func unmarshalNested(it *json.Iterator) (Value, error) {
	raw := it.SkipAndReturnBytes()
	if it.Error != nil {
		return Value{}, errors.Undecodable(nil, it.Error.Error())
	}
	var v Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return Value{}, err
	}
	return v, nil
}
