package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode    Phase = "encode"    // native value to wire value
	PhaseDecode    Phase = "decode"    // wire value to native value
	PhaseTransport Phase = "transport" // framing and stream I/O
	PhaseCall      Phase = "call"      // command/reply exchange
	PhaseResolve   Phase = "resolve"   // name and class resolution
	PhaseLaunch    Phase = "launch"    // worker process startup
)

// Kind categorizes the error
type Kind string

const (
	// KindConnectionLost marks a severed or desynchronized transport.
	// Fatal to the session; never retried.
	KindConnectionLost Kind = "connection_lost"

	// KindProtocol marks a reply that violates the expected shape.
	// Treated exactly like a lost connection.
	KindProtocol Kind = "protocol"

	// KindRemoteFault marks a fault the worker reported while executing a
	// command. Carries the decoded foreign error value; safe to catch.
	KindRemoteFault Kind = "remote_fault"

	// KindUnknownConstruct marks a failed name resolution. Local and
	// non-fatal; the session stays healthy.
	KindUnknownConstruct Kind = "unknown_construct"

	// KindCrossSession marks an attempt to encode a value owned by a
	// different session. A caller bug; local and non-fatal.
	KindCrossSession Kind = "cross_session"

	KindInvalidData Kind = "invalid_data"
	KindUnsupported Kind = "unsupported"
	KindTimeout     Kind = "timeout"
	KindClosed      Kind = "closed"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Remote  any // decoded foreign error value, if any
	Cause   error
	Phase   Phase
	Kind    Kind
	Command string // bridge command being executed, if any
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Command != "" {
		b.WriteString(" in ")
		b.WriteString(e.Command)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// As re-exports the standard library matcher so call sites only import
// this package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path within a payload
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Command sets the bridge command name
func (b *Builder) Command(cmd string) *Builder {
	b.err.Command = cmd
	return b
}

// Remote sets the decoded foreign error value
func (b *Builder) Remote(v any) *Builder {
	b.err.Remote = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ConnectionLost creates a fatal transport error
func ConnectionLost(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseTransport,
		Kind:   KindConnectionLost,
		Detail: detail,
		Cause:  cause,
	}
}

// Protocol creates a malformed-reply error
func Protocol(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseTransport,
		Kind:   KindProtocol,
		Detail: detail,
		Cause:  cause,
	}
}

// RemoteFault creates an error carrying a worker-reported fault.
// value is the decoded foreign error value; message is the worker's
// rendering of it, kept even when value failed to decode.
func RemoteFault(command, message string, value any) *Error {
	return &Error{
		Phase:   PhaseCall,
		Kind:    KindRemoteFault,
		Command: command,
		Detail:  message,
		Remote:  value,
	}
}

// UnknownConstruct creates a failed name resolution error
func UnknownConstruct(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnknownConstruct,
		Detail: fmt.Sprintf("nothing named %q found", name),
	}
}

// CrossSession creates an error for a value owned by another session
func CrossSession(what string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindCrossSession,
		Detail: fmt.Sprintf("%s belongs to a different session", what),
	}
}

// Unencodable creates an error for a value with no wire representation
func Unencodable(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Undecodable creates an error for a malformed wire value
func Undecodable(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Unsupported creates an error for a capability the class does not implement
func Unsupported(class, capability string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindUnsupported,
		Detail: fmt.Sprintf("class %s does not implement %s", class, capability),
	}
}

// Timeout creates an error for a call that exceeded its deadline.
// A timed-out session cannot be resumed; callers see connection_lost after.
func Timeout(command string, detail string) *Error {
	return &Error{
		Phase:   PhaseCall,
		Kind:    KindTimeout,
		Command: command,
		Detail:  detail,
	}
}

// Closed creates an error for use of an already-failed or closed session
func Closed(detail string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindClosed,
		Detail: detail,
	}
}

// Launch creates a worker startup error
func Launch(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLaunch,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Predicates used at call sites to route on the taxonomy.

func kindOf(err error) (Kind, bool) {
	var e *Error
	if !As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// IsConnectionLost reports whether err is fatal to its session (a severed
// transport, a framing violation, or a session already marked unusable).
func IsConnectionLost(err error) bool {
	k, ok := kindOf(err)
	return ok && (k == KindConnectionLost || k == KindProtocol || k == KindClosed)
}

// IsRemoteFault reports whether err is a worker-reported fault
func IsRemoteFault(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRemoteFault
}

// AsRemoteFault returns the fault's decoded foreign error value
func AsRemoteFault(err error) (any, bool) {
	var e *Error
	if As(err, &e) && e.Kind == KindRemoteFault {
		return e.Remote, true
	}
	return nil, false
}

// IsUnknownConstruct reports whether err is a failed name resolution
func IsUnknownConstruct(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindUnknownConstruct
}

// IsCrossSession reports whether err is a cross-session encode misuse
func IsCrossSession(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindCrossSession
}

// IsTimeout reports whether err is a call deadline failure
func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTimeout
}
