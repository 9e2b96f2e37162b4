package worker

import (
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Factory constructs worker processes from a registered target name. The
// package holds one current factory; libraries that need to decorate every
// new worker (aggregation does) Swap in a wrapper for a while and restore
// the previous factory afterwards.
type Factory interface {
	New(target string, args ...string) (*Process, error)
}

// execFactory is the default: re-invoke the current executable.
type execFactory struct{}

func (execFactory) New(target string, args ...string) (*Process, error) {
	if target == "" {
		return nil, errors.New("worker: target name required")
	}
	if _, ok := lookup(target); !ok {
		return nil, errors.Errorf("worker: no entry point registered for %q", target)
	}
	return &Process{target: target, args: args}, nil
}

var (
	factoryMu sync.RWMutex
	current   Factory = execFactory{}
)

// Current returns the factory used by New.
func Current() Factory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	return current
}

// Swap replaces the process-wide factory and returns the previous one so
// the caller can restore it. A nil argument reinstates the default.
func Swap(f Factory) Factory {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	prev := current
	if f == nil {
		f = execFactory{}
	}
	current = f
	return prev
}

// New constructs a worker process using the current factory.
func New(target string, args ...string) (*Process, error) {
	return Current().New(target, args...)
}

// Process is a not-yet-started worker. Hook payloads attached before Start
// are handed to the matching registered Hooks in the child before its
// entry point runs.
type Process struct {
	target string
	args   []string
	hooks  []hookPayload
	cmd    *exec.Cmd
}

// Target returns the entry-point name the worker will run.
func (p *Process) Target() string {
	return p.target
}

// AttachHook adds a named hook payload for the worker's startup.
func (p *Process) AttachHook(name string, payload []byte) {
	p.hooks = append(p.hooks, hookPayload{Name: name, Payload: payload})
}

// Start launches the worker. The child inherits the parent's stdout and
// stderr.
func (p *Process) Start() error {
	if p.cmd != nil {
		return errors.New("worker: process already started")
	}
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "resolve executable")
	}
	env := workerEnv()
	env = append(env, envTarget+"="+p.target)
	if len(p.hooks) > 0 {
		encoded, err := encodeHooks(p.hooks)
		if err != nil {
			return err
		}
		env = append(env, envHooks+"="+encoded)
	}
	cmd := exec.Command(exe, p.args...)
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start worker %s", p.target)
	}
	p.cmd = cmd
	return nil
}

// Wait blocks until the worker exits, returning its exit error if any.
func (p *Process) Wait() error {
	if p.cmd == nil {
		return errors.New("worker: process not started")
	}
	return p.cmd.Wait()
}

// Run starts the worker and waits for it to finish.
func (p *Process) Run() error {
	if err := p.Start(); err != nil {
		return err
	}
	return p.Wait()
}

// PID returns the worker's OS process id, or 0 before Start.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// workerEnv is the parent environment minus this package's own variables.
// A worker spawning a sub-worker must not leak its target or its hook
// payloads into the grandchild: hooks apply to exactly the process they
// were attached to.
func workerEnv() []string {
	environ := os.Environ()
	env := make([]string, 0, len(environ)+2)
	for _, kv := range environ {
		if strings.HasPrefix(kv, envTarget+"=") || strings.HasPrefix(kv, envHooks+"=") {
			continue
		}
		env = append(env, kv)
	}
	return env
}
