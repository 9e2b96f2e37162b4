package funnel

import (
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/Cybereason/epic-logging/worker"
)

// hookName identifies the worker hook that reinstates interception inside a
// newly spawned process.
const hookName = "epic-logging/funnel"

// handlerSnapshot is the serializable state of one installed interceptor:
// its threshold and the transport endpoint its records go to. A worker
// reconstructs an equivalent interceptor from it.
type handlerSnapshot struct {
	Level    slog.Level `json:"level"`
	Endpoint string     `json:"endpoint"`
}

// spawnFactory decorates the worker factory for the duration of one
// session and carries that session's interceptor only. Nested sessions
// stack factories, and the chained New calls attach one snapshot per
// layer, so a worker ends up with exactly one reconstructed interceptor
// per active session.
type spawnFactory struct {
	next worker.Factory
	h    *Interceptor
}

func (f spawnFactory) New(target string, args ...string) (*worker.Process, error) {
	p, err := f.next.New(target, args...)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal([]handlerSnapshot{f.h.snapshot()})
	if err != nil {
		return nil, errors.Wrap(err, "encode interceptor snapshot")
	}
	p.AttachHook(hookName, payload)
	return p, nil
}

func init() {
	worker.RegisterHook(hookName, spawnHook{})
}

// spawnHook runs in the worker before its entry point: it dials each
// snapshot's endpoint and installs a matching interceptor on the process
// default backbone. Teardown uninstalls them and closes the connections so
// the owning process sees EOF when the worker finishes cleanly.
type spawnHook struct{}

func (spawnHook) Setup(payload []byte) (func(), error) {
	var snaps []handlerSnapshot
	if err := json.Unmarshal(payload, &snaps); err != nil {
		return nil, errors.Wrap(err, "decode interceptor snapshots")
	}
	type installed struct {
		h *Interceptor
		q *RemoteQueue
	}
	var active []installed
	teardown := func() {
		for i := len(active) - 1; i >= 0; i-- {
			_ = active[i].h.Uninstall()
			_ = active[i].q.Close()
		}
	}
	for _, snap := range snaps {
		q, err := Dial(snap.Endpoint)
		if err != nil {
			teardown()
			return nil, err
		}
		h := NewInterceptor(snap.Level, q, nil)
		h.Install()
		active = append(active, installed{h: h, q: q})
	}
	return teardown, nil
}
