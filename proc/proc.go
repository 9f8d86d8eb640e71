package proc

import (
	"io"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/objlink/objlink/errors"
)

// Worker is a launched worker process wired for the bridge: its stdin is the
// command channel, its stdout the reply channel, and its stderr the
// diagnostic channel. It satisfies the root Streams contract.
type Worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	grace time.Duration
	done  chan error
}

// Option configures a launch.
type Option func(*Worker, *exec.Cmd)

// WithDir sets the worker's working directory.
func WithDir(dir string) Option {
	return func(_ *Worker, cmd *exec.Cmd) { cmd.Dir = dir }
}

// WithEnv sets the worker's environment. nil inherits the host's.
func WithEnv(env []string) Option {
	return func(_ *Worker, cmd *exec.Cmd) { cmd.Env = env }
}

// WithShutdownGrace bounds how long Close waits for the worker to exit on
// its own after the command channel closes, before killing it.
func WithShutdownGrace(d time.Duration) Option {
	return func(w *Worker, _ *exec.Cmd) { w.grace = d }
}

// Launch starts argv as a worker process and connects its standard streams.
func Launch(argv []string, opts ...Option) (*Worker, error) {
	if len(argv) == 0 {
		return nil, errors.Launch("empty worker command line", nil)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	w := &Worker{
		cmd:   cmd,
		grace: 3 * time.Second,
		done:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(w, cmd)
	}

	var err error
	if w.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, errors.Launch("open command channel", err)
	}
	if w.stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, errors.Launch("open reply channel", err)
	}
	if w.stderr, err = cmd.StderrPipe(); err != nil {
		return nil, errors.Launch("open diagnostic channel", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Launch("start worker "+argv[0], err)
	}
	go func() { w.done <- cmd.Wait() }()

	Logger().Debug("worker started",
		zap.String("binary", argv[0]),
		zap.Int("pid", cmd.Process.Pid))
	return w, nil
}

// Commands is the outbound command channel (the worker's stdin).
func (w *Worker) Commands() io.Writer { return w.stdin }

// Replies is the inbound reply channel (the worker's stdout).
func (w *Worker) Replies() io.Reader { return w.stdout }

// Diagnostics is the worker's stderr.
func (w *Worker) Diagnostics() io.Reader { return w.stderr }

// Pid returns the worker's process id.
func (w *Worker) Pid() int { return w.cmd.Process.Pid }

// Close shuts the worker down: it closes the command channel, waits up to
// the grace period for a voluntary exit, then kills the process. Closing the
// streams also unblocks any reader still parked on the reply channel.
func (w *Worker) Close() error {
	w.stdin.Close()

	select {
	case err := <-w.done:
		return ignoreExitErr(err)
	case <-time.After(w.grace):
	}

	Logger().Warn("worker ignored shutdown, killing",
		zap.Int("pid", w.cmd.Process.Pid))
	if err := w.cmd.Process.Kill(); err != nil {
		return errors.Launch("kill worker", err)
	}
	return ignoreExitErr(<-w.done)
}

// ignoreExitErr drops the expected exit statuses of a worker told to stop:
// a clean exit, a broken-pipe death, or the kill we sent ourselves.
func ignoreExitErr(err error) error {
	if err == nil {
		return nil
	}
	exit, ok := err.(*exec.ExitError)
	if !ok {
		return err
	}
	status, ok := exit.Sys().(syscall.WaitStatus)
	if !ok {
		return err
	}
	if status.Signaled() {
		switch status.Signal() {
		case syscall.SIGKILL, syscall.SIGPIPE, syscall.SIGTERM:
			return nil
		}
	}
	return err
}
