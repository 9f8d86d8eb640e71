package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "phase and kind",
			err:  &Error{Phase: PhaseTransport, Kind: KindConnectionLost},
			want: "[transport] connection_lost",
		},
		{
			name: "with command",
			err:  &Error{Phase: PhaseCall, Kind: KindRemoteFault, Command: "callMethod"},
			want: "[call] remote_fault in callMethod",
		},
		{
			name: "with path and detail",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindInvalidData,
				Path:   []string{"args", "1"},
				Detail: "mixed key types",
			},
			want: "[encode] invalid_data at args.1: mixed key types",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_CauseChain(t *testing.T) {
	cause := stderrors.New("broken pipe")
	err := ConnectionLost("write command", cause)

	if !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("Error() should mention cause, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestError_Is(t *testing.T) {
	a := ConnectionLost("x", nil)
	b := ConnectionLost("y", nil)
	c := Protocol("z", nil)

	if !stderrors.Is(a, b) {
		t.Error("same phase/kind should match")
	}
	if stderrors.Is(a, c) {
		t.Error("different kind should not match")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseDecode, KindInvalidData).
		Path("data", "value").
		Command("getProperty").
		Detail("unknown tag %q", "blob").
		Build()

	if err.Phase != PhaseDecode || err.Kind != KindInvalidData {
		t.Fatalf("builder lost discriminants: %+v", err)
	}
	if err.Detail != `unknown tag "blob"` {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Command != "getProperty" {
		t.Errorf("Command = %q", err.Command)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		err  error
		name string
		pred func(error) bool
		want bool
	}{
		{ConnectionLost("", nil), "lost is lost", IsConnectionLost, true},
		{Protocol("", nil), "protocol is lost", IsConnectionLost, true},
		{Closed(""), "closed is lost", IsConnectionLost, true},
		{RemoteFault("repr", "boom", nil), "fault not lost", IsConnectionLost, false},
		{RemoteFault("repr", "boom", nil), "fault is fault", IsRemoteFault, true},
		{UnknownConstruct("Foo"), "unknown construct", IsUnknownConstruct, true},
		{CrossSession("object"), "cross session", IsCrossSession, true},
		{Timeout("count", ""), "timeout", IsTimeout, true},
		{stderrors.New("plain"), "plain error", IsConnectionLost, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredicates_Wrapped(t *testing.T) {
	err := fmt.Errorf("call failed: %w", RemoteFault("callFun", "division by zero", "payload"))

	if !IsRemoteFault(err) {
		t.Fatal("wrapped fault should still be a fault")
	}
	v, ok := AsRemoteFault(err)
	if !ok || v != "payload" {
		t.Errorf("AsRemoteFault = %v, %v", v, ok)
	}
}
