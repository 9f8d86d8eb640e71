package bridge

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/json-iterator/go"

	"github.com/objlink/objlink"
	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/session"
	"github.com/objlink/objlink/wire"
)

// workerRequest is one decoded command line as the fake worker sees it.
type workerRequest struct {
	Cmd     string          `json:"cmd"`
	Data    json.RawMessage `json:"data"`
	Garbage []wire.Handle   `json:"garbage"`
}

// fakeWorker reads command lines from the bridge and answers each with the
// line its handler produces. A handler returning "" leaves the command
// unanswered, which is how the timeout tests starve the bridge.
type fakeWorker struct {
	cmdR   *io.PipeReader
	cmdW   *io.PipeWriter
	repR   *io.PipeReader
	repW   *io.PipeWriter
	closed sync.Once

	mu       sync.Mutex
	requests []workerRequest
}

func newFakeWorker(t *testing.T, handler func(req workerRequest) string) (*fakeWorker, objlink.Streams) {
	t.Helper()

	w := &fakeWorker{}
	w.cmdR, w.cmdW = io.Pipe()
	w.repR, w.repW = io.Pipe()

	go func() {
		reader := newLineReader(w.cmdR)
		for {
			line, err := reader()
			if err != nil {
				w.repW.Close()
				return
			}
			var req workerRequest
			if err := jsonAPI.Unmarshal(line, &req); err != nil {
				w.repW.Close()
				return
			}
			w.mu.Lock()
			w.requests = append(w.requests, req)
			w.mu.Unlock()

			reply := handler(req)
			if reply == "" {
				continue
			}
			if _, err := io.WriteString(w.repW, reply+"\n"); err != nil {
				return
			}
		}
	}()

	t.Cleanup(w.close)
	return w, objlink.PipeStreams{In: w.cmdW, Out: w.repR}
}

func (w *fakeWorker) close() {
	w.closed.Do(func() {
		w.cmdW.Close()
		w.cmdR.Close()
		w.repW.Close()
		w.repR.Close()
	})
}

func (w *fakeWorker) seen(cmd string) []workerRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []workerRequest
	for _, r := range w.requests {
		if r.Cmd == cmd {
			out = append(out, r)
		}
	}
	return out
}

func newLineReader(r io.Reader) func() ([]byte, error) {
	buf := make([]byte, 0, 4096)
	one := make([]byte, 1)
	return func() ([]byte, error) {
		buf = buf[:0]
		for {
			if _, err := r.Read(one); err != nil {
				return nil, err
			}
			if one[0] == '\n' {
				return buf, nil
			}
			buf = append(buf, one[0])
		}
	}
}

func resultLine(data string, collected ...string) string {
	if data == "" {
		data = "null"
	}
	parts := make([]string, len(collected))
	for i, h := range collected {
		parts[i] = fmt.Sprintf("%q", h)
	}
	return fmt.Sprintf(`{"type":"result","data":%s,"collected":[%s]}`,
		data, strings.Join(parts, ","))
}

func exceptionLine(valueJSON, message string) string {
	if valueJSON == "" {
		valueJSON = "null"
	}
	return fmt.Sprintf(`{"type":"exception","data":{"value":%s,"message":%q},"collected":[]}`,
		valueJSON, message)
}

// Canned class shape documents for the scripted worker.
var classDocs = map[string]string{
	"Countable": `{"name":"Countable","doc":false,"parent":false,"interfaces":[],` +
		`"consts":[],"properties":[],"methods":[],"isAbstract":false,"isInterface":true}`,
	"Traversable": `{"name":"Traversable","doc":false,"parent":false,"interfaces":[],` +
		`"consts":[],"properties":[],"methods":[],"isAbstract":false,"isInterface":true}`,
	"Iterator": `{"name":"Iterator","doc":false,"parent":false,"interfaces":["Traversable"],` +
		`"consts":[],"properties":[],"methods":[],"isAbstract":false,"isInterface":true}`,
	"Throwable": `{"name":"Throwable","doc":false,"parent":false,"interfaces":[],` +
		`"consts":[],"properties":[],"methods":[],"isAbstract":false,"isInterface":true}`,
	"RuntimeException": `{"name":"RuntimeException","doc":false,"parent":false,` +
		`"interfaces":["Throwable"],"consts":[],"properties":[],` +
		`"methods":{"getMessage":{"name":"getMessage","doc":false,"owner":"RuntimeException",` +
		`"static":false,"params":[],"returnType":null}},"isAbstract":false,"isInterface":false}`,
	// Declares Iterator and Traversable both; the materializer must prune
	// the redundant Traversable base.
	"Foo": `{"name":"Foo","doc":"A test subject.","parent":false,` +
		`"interfaces":["Countable","Iterator","Traversable"],` +
		`"consts":{"VERSION":3},` +
		`"properties":{"size":{"doc":"Element count."}},` +
		`"methods":{"bar":{"name":"bar","doc":false,"owner":"Foo","static":false,` +
		`"params":[{"name":"x","type":null,"default":null,"hasDefault":false,` +
		`"isOptional":false,"variadic":false}],"returnType":null}},` +
		`"isAbstract":false,"isInterface":false}`,
}

// classInfoHandler answers classInfo for the canned documents and leaves
// everything else to next.
func classInfoHandler(next func(req workerRequest) string) func(req workerRequest) string {
	return func(req workerRequest) string {
		if req.Cmd != cmdClassInfo {
			return next(req)
		}
		var name string
		if err := jsonAPI.Unmarshal(req.Data, &name); err != nil {
			return exceptionLine("", "classInfo wants a name")
		}
		doc, ok := classDocs[strings.TrimPrefix(name, `\`)]
		if !ok {
			return exceptionLine("", "Class '"+name+"' not found")
		}
		return resultLine(doc)
	}
}

func noMoreCommands(req workerRequest) string {
	return exceptionLine("", "unexpected command "+req.Cmd)
}

func TestBridge_CallRemoteFault(t *testing.T) {
	handler := classInfoHandler(func(req workerRequest) string {
		if req.Cmd == cmdGetGlobal {
			return exceptionLine(
				`{"type":"object","value":{"class":"RuntimeException","hash":"exc1"}}`,
				"RuntimeException: it broke")
		}
		return noMoreCommands(req)
	})
	_, streams := newFakeWorker(t, handler)
	b := New(streams)

	_, err := b.GetGlobal("whatever")
	if !errors.IsRemoteFault(err) {
		t.Fatalf("got %v, want remote fault", err)
	}
	if !strings.Contains(err.Error(), "it broke") {
		t.Errorf("error text = %q", err)
	}

	remote, ok := errors.AsRemoteFault(err)
	if !ok {
		t.Fatal("fault value missing")
	}
	obj, ok := remote.(*Object)
	if !ok {
		t.Fatalf("fault value = %T, want *Object", remote)
	}
	if obj.Class().Name != "RuntimeException" || !obj.Throwable() {
		t.Errorf("fault object = %v", obj)
	}

	// A fault leaves the session healthy.
	if _, err := b.ResolveClass("Foo"); err != nil {
		t.Errorf("session unusable after fault: %v", err)
	}
}

func TestBridge_FaultValueMayBeAbsent(t *testing.T) {
	_, streams := newFakeWorker(t, func(req workerRequest) string {
		return exceptionLine("", "parse error")
	})
	b := New(streams)

	_, err := b.GetGlobal("x")
	if !errors.IsRemoteFault(err) {
		t.Fatalf("got %v", err)
	}
	if remote, _ := errors.AsRemoteFault(err); remote != nil {
		t.Errorf("remote = %v, want nil", remote)
	}
	if !strings.Contains(err.Error(), "parse error") {
		t.Errorf("message lost: %q", err)
	}
}

func TestBridge_GarbagePiggybacksAndRetries(t *testing.T) {
	confirm := false
	var mu sync.Mutex
	handler := classInfoHandler(func(req workerRequest) string {
		switch req.Cmd {
		case cmdGetGlobal:
			return resultLine(`{"type":"object","value":{"class":"Foo","hash":"h1"}}`)
		case cmdListClasses:
			mu.Lock()
			defer mu.Unlock()
			if confirm {
				echoes := make([]string, len(req.Garbage))
				for i, h := range req.Garbage {
					echoes[i] = h.Text()
				}
				return resultLine(`[]`, echoes...)
			}
			return resultLine(`[]`)
		}
		return noMoreCommands(req)
	})
	worker, streams := newFakeWorker(t, handler)
	b := New(streams)

	obj, err := b.GetGlobal("conn")
	if err != nil {
		t.Fatal(err)
	}
	proxy := obj.(*Object)
	proxy.Close()

	if b.Registry().PendingCount() != 1 {
		t.Fatalf("pending = %d after close", b.Registry().PendingCount())
	}

	// First command advertises the handle but the worker does not confirm.
	if _, err := b.ListClasses(); err != nil {
		t.Fatal(err)
	}
	reqs := worker.seen(cmdListClasses)
	if len(reqs) != 1 || len(reqs[0].Garbage) != 1 || reqs[0].Garbage[0] != wire.StringHandle("h1") {
		t.Fatalf("garbage not advertised: %+v", reqs)
	}
	if b.Registry().PendingCount() != 1 {
		t.Error("unconfirmed handle must stay pending")
	}

	// The next command retries it, and this time the worker confirms.
	mu.Lock()
	confirm = true
	mu.Unlock()
	if _, err := b.ListClasses(); err != nil {
		t.Fatal(err)
	}
	reqs = worker.seen(cmdListClasses)
	if len(reqs[1].Garbage) != 1 {
		t.Fatal("garbage not retried")
	}
	if b.Registry().PendingCount() != 0 {
		t.Error("confirmed handle must leave pending")
	}
}

func TestBridge_DecodeIdentity(t *testing.T) {
	handler := classInfoHandler(func(req workerRequest) string {
		if req.Cmd == cmdGetGlobal {
			return resultLine(`{"type":"object","value":{"class":"Foo","hash":"h9"}}`)
		}
		return noMoreCommands(req)
	})
	_, streams := newFakeWorker(t, handler)
	b := New(streams)

	first, err := b.GetGlobal("conn")
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.GetGlobal("conn")
	if err != nil {
		t.Fatal(err)
	}
	if first.(*Object) != second.(*Object) {
		t.Error("one live handle must map to one proxy")
	}
}

func TestBridge_CallTimeoutKillsSession(t *testing.T) {
	handler := classInfoHandler(func(req workerRequest) string {
		if req.Cmd == cmdGetGlobal {
			return "" // never answer
		}
		return noMoreCommands(req)
	})
	_, streams := newFakeWorker(t, handler)
	b := New(streams, WithCallTimeout(30*time.Millisecond))

	_, err := b.GetGlobal("slow")
	if !errors.IsTimeout(err) {
		t.Fatalf("got %v, want timeout", err)
	}

	// The reply stream is unpaired now; the session must refuse further use.
	_, err = b.ListClasses()
	if !errors.IsConnectionLost(err) {
		t.Fatalf("call after timeout = %v, want connection lost", err)
	}
}

func TestBridge_ConnectionLossResetsTracking(t *testing.T) {
	handler := classInfoHandler(func(req workerRequest) string {
		switch req.Cmd {
		case cmdGetGlobal:
			return resultLine(`{"type":"object","value":{"class":"Foo","hash":"gone"}}`)
		case cmdListClasses:
			return "kaboom, not json"
		}
		return noMoreCommands(req)
	})
	_, streams := newFakeWorker(t, handler)
	b := New(streams, WithSessionOptions(session.WithDiagnosticsSink(io.Discard)))

	obj, err := b.GetGlobal("conn")
	if err != nil {
		t.Fatal(err)
	}
	obj.(*Object).Close()

	_, err = b.ListClasses()
	if !errors.IsConnectionLost(err) {
		t.Fatalf("got %v, want connection lost", err)
	}
	if b.Registry().PendingCount() != 0 || b.Registry().LiveCount() != 0 {
		t.Error("tracking must be discarded with the session")
	}
}

func TestBridge_CrossSessionEncodeRejected(t *testing.T) {
	handler := classInfoHandler(func(req workerRequest) string {
		if req.Cmd == cmdGetGlobal {
			return resultLine(`{"type":"object","value":{"class":"Foo","hash":"o1"}}`)
		}
		return noMoreCommands(req)
	})
	_, streamsA := newFakeWorker(t, handler)
	_, streamsB := newFakeWorker(t, handler)
	a := New(streamsA)
	b := New(streamsB)

	obj, err := a.GetGlobal("conn")
	if err != nil {
		t.Fatal(err)
	}

	err = b.SetGlobal("stolen", obj)
	if !errors.IsCrossSession(err) {
		t.Fatalf("got %v, want cross session", err)
	}
	// No command may have been sent for the bad value.
	if b.Session().Err() != nil {
		t.Error("cross-session misuse must not damage the session")
	}
}

func TestBridge_CloseMakesUnusable(t *testing.T) {
	_, streams := newFakeWorker(t, noMoreCommands)
	b := New(streams)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ListClasses(); !errors.IsConnectionLost(err) {
		t.Errorf("call after close = %v", err)
	}
}
