package worker

import (
	"fmt"
	"os"
	"sync"
)

const (
	envTarget = "EPIC_WORKER_TARGET"
	envHooks  = "EPIC_WORKER_HOOKS"
)

// Main is a named worker entry point.
type Main func(args []string) error

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Main)
)

// Register binds an entry point to a name. Call it from an init function so
// the binding exists in the child before Init runs. Registering an empty
// name, a nil function, or a duplicate name panics: these are wiring bugs,
// not runtime conditions.
func Register(name string, fn Main) {
	if name == "" || fn == nil {
		panic("worker: Register requires a name and a function")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("worker: duplicate entry point " + name)
	}
	registry[name] = fn
}

func lookup(name string) (Main, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Init hands control to a registered entry point when the current process
// was started by a Factory, and exits the process when the entry point
// returns. In an ordinary process it returns immediately. Call it before
// anything else in main (or TestMain).
func Init() {
	target := os.Getenv(envTarget)
	if target == "" {
		return
	}
	os.Exit(run(target, os.Args[1:]))
}

func run(target string, args []string) int {
	fn, ok := lookup(target)
	if !ok {
		fmt.Fprintf(os.Stderr, "worker: no entry point registered for %q\n", target)
		return 2
	}
	teardowns := setupHooks(os.Getenv(envHooks))
	if err := runTarget(fn, args, teardowns); err != nil {
		fmt.Fprintf(os.Stderr, "worker %s: %v\n", target, err)
		return 1
	}
	return 0
}

// runTarget runs the entry point with the hook teardowns deferred, so they
// fire in reverse order on normal returns and on panics alike.
func runTarget(fn Main, args []string, teardowns []func()) error {
	defer func() {
		for i := len(teardowns) - 1; i >= 0; i-- {
			teardowns[i]()
		}
	}()
	return fn(args)
}
