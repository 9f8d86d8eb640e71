package wire

import (
	"fmt"
	"strconv"

	json "github.com/json-iterator/go"
)

// Handle is a worker-issued identifier for a remote entity. Workers hand out
// string hashes for objects and numeric ids for resources; both forms are
// preserved exactly so that echoing a handle back compares equal on the
// worker side. Handle is comparable and usable as a map key.
type Handle struct {
	text    string
	num     int64
	numeric bool
}

// StringHandle wraps a worker-issued object hash.
func StringHandle(s string) Handle {
	return Handle{text: s}
}

// IntHandle wraps a worker-issued numeric resource id.
func IntHandle(n int64) Handle {
	return Handle{num: n, numeric: true}
}

// Numeric reports whether the handle is the numeric form.
func (h Handle) Numeric() bool { return h.numeric }

// Int returns the numeric form's value. Zero for string handles.
func (h Handle) Int() int64 { return h.num }

// Text returns the string form's value. Empty for numeric handles.
func (h Handle) Text() string { return h.text }

// IsZero reports whether the handle is the empty string handle.
func (h Handle) IsZero() bool { return !h.numeric && h.text == "" }

func (h Handle) String() string {
	if h.numeric {
		return strconv.FormatInt(h.num, 10)
	}
	return h.text
}

// MarshalJSON emits the handle in its original wire form.
func (h Handle) MarshalJSON() ([]byte, error) {
	if h.numeric {
		return []byte(strconv.FormatInt(h.num, 10)), nil
	}
	return json.Marshal(h.text)
}

// UnmarshalJSON accepts either wire form.
func (h *Handle) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty handle")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = StringHandle(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("handle must be a string or an integer: %w", err)
	}
	*h = IntHandle(n)
	return nil
}
