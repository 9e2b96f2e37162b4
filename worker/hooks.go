package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Hook prepares worker-side state before the entry point runs. Setup
// receives the payload attached in the parent and returns a teardown that
// always runs after the entry point, even when the entry point fails.
type Hook interface {
	Setup(payload []byte) (teardown func(), err error)
}

var (
	hookMu sync.RWMutex
	hooks  = make(map[string]Hook)
)

// RegisterHook binds a hook implementation to a name. Like Register, call
// it from an init function so parent and child agree on the binding.
func RegisterHook(name string, h Hook) {
	if name == "" || h == nil {
		panic("worker: RegisterHook requires a name and a hook")
	}
	hookMu.Lock()
	defer hookMu.Unlock()
	if _, dup := hooks[name]; dup {
		panic("worker: duplicate hook " + name)
	}
	hooks[name] = h
}

func lookupHook(name string) (Hook, bool) {
	hookMu.RLock()
	defer hookMu.RUnlock()
	h, ok := hooks[name]
	return h, ok
}

// hookPayload is one hook attachment as carried through the environment.
type hookPayload struct {
	Name    string `json:"name"`
	Payload []byte `json:"payload,omitempty"`
}

func encodeHooks(list []hookPayload) (string, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return "", errors.Wrap(err, "encode worker hooks")
	}
	return string(data), nil
}

// setupHooks runs the Setup of every attached hook and collects teardowns.
// Problems are reported to stderr and the affected hook is skipped: a
// worker must still run its entry point even when startup plumbing is
// broken.
func setupHooks(encoded string) []func() {
	if encoded == "" {
		return nil
	}
	var list []hookPayload
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		fmt.Fprintf(os.Stderr, "worker: malformed hook payloads: %v\n", err)
		return nil
	}
	var teardowns []func()
	for _, hp := range list {
		hook, ok := lookupHook(hp.Name)
		if !ok {
			fmt.Fprintf(os.Stderr, "worker: no hook registered for %q\n", hp.Name)
			continue
		}
		teardown, err := hook.Setup(hp.Payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "worker: hook %s setup: %v\n", hp.Name, err)
			continue
		}
		if teardown != nil {
			teardowns = append(teardowns, teardown)
		}
	}
	return teardowns
}
