package proc

import (
	"bufio"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/objlink/objlink/errors"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test workers use unix tools")
	}
}

func TestLaunch_StreamsAreWired(t *testing.T) {
	skipWithoutShell(t)

	// cat echoes the command channel back on the reply channel.
	w, err := Launch([]string{"cat"})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := io.WriteString(w.Commands(), "ping\n"); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(w.Replies()).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "ping\n" {
		t.Errorf("reply = %q", line)
	}
	if w.Pid() <= 0 {
		t.Errorf("pid = %d", w.Pid())
	}
}

func TestLaunch_DiagnosticsChannel(t *testing.T) {
	skipWithoutShell(t)

	w, err := Launch([]string{"sh", "-c", "echo oops >&2; cat"})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	line, err := bufio.NewReader(w.Diagnostics()).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(line, "oops") {
		t.Errorf("diagnostics = %q", line)
	}
}

func TestClose_GracefulExit(t *testing.T) {
	skipWithoutShell(t)

	w, err := Launch([]string{"cat"})
	if err != nil {
		t.Fatal(err)
	}
	// cat exits once stdin closes; no kill should be needed.
	if err := w.Close(); err != nil {
		t.Errorf("close = %v", err)
	}
}

func TestClose_KillsStubbornWorker(t *testing.T) {
	skipWithoutShell(t)

	w, err := Launch([]string{"sh", "-c", "trap '' TERM; sleep 60"},
		WithShutdownGrace(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := w.Close(); err != nil {
		t.Errorf("close = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("close did not kill the worker promptly")
	}
}

func TestLaunch_MissingBinary(t *testing.T) {
	_, err := Launch([]string{"/no/such/worker/binary"})
	var e *errors.Error
	if !errors.As(err, &e) || e.Phase != errors.PhaseLaunch {
		t.Fatalf("got %v, want launch error", err)
	}
}

func TestLaunch_EmptyArgv(t *testing.T) {
	_, err := Launch(nil)
	var e *errors.Error
	if !errors.As(err, &e) || e.Phase != errors.PhaseLaunch {
		t.Fatalf("got %v, want launch error", err)
	}
}
