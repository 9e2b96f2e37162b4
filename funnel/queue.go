package funnel

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Cybereason/epic-logging/backbone"
)

// Tagged pairs a record with the id of the process that emitted it.
type Tagged struct {
	PID    int             `json:"pid"`
	Record backbone.Record `json:"record"`
}

// Putter accepts tagged records for delivery to a session's consumer. Put
// is best-effort and never blocks or fails; Endpoint identifies the
// transport so a handle can be reconstructed in another process.
type Putter interface {
	Put(Tagged)
	Endpoint() string
}

const (
	// queueBuffer bounds how many undelivered records a session holds
	// before producers start dropping.
	queueBuffer = 1024
	// drainGrace is how long Close lets still-connected producers flush
	// before their remaining frames are dropped.
	drainGrace = 100 * time.Millisecond
)

// Queue is the owner side of the handoff channel: unboundedly many
// producers across threads and processes, exactly one consumer. Producers
// in other processes connect to the unix socket at Endpoint and write
// newline-delimited JSON frames.
type Queue struct {
	path     string
	listener *net.UnixListener

	mu       sync.RWMutex
	closed   bool
	deadline time.Time
	conns    map[net.Conn]struct{}

	out chan Tagged
	wg  sync.WaitGroup
}

// NewQueue opens a queue listening on a fresh unix socket in the temp
// directory.
func NewQueue() (*Queue, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("epiclog-%s.sock", uuid.NewString()))
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, errors.Wrap(err, "listen on handoff socket")
	}
	q := &Queue{
		path:     path,
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
		out:      make(chan Tagged, queueBuffer),
	}
	q.wg.Add(1)
	go q.accept()
	return q, nil
}

// Endpoint returns the socket path remote producers dial.
func (q *Queue) Endpoint() string {
	return q.path
}

// Put enqueues t unless the queue is closed or full. Drops are silent in
// both cases: a log call site must never block or fail because of
// aggregation state.
func (q *Queue) Put(t Tagged) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	q.deliver(t)
}

// Records returns the consumer's view of the queue: a finite, single-pass
// sequence that blocks while empty and ends only after Close has been
// called and everything delivered before it has been received.
func (q *Queue) Records() <-chan Tagged {
	return q.out
}

// Close stops intake and terminates the Records sequence once in-flight
// frames have been drained. Producer connections, including ones still
// waiting in the listener backlog, are granted drainGrace to flush;
// whatever arrives later is dropped. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	deadline := time.Now().Add(drainGrace)
	q.deadline = deadline
	conns := make([]net.Conn, 0, len(q.conns))
	for c := range q.conns {
		conns = append(conns, c)
	}
	q.mu.Unlock()

	// The deadline, not listener close, ends the accept loop: producers
	// that connected before Close but have not been accepted yet would be
	// discarded with the backlog otherwise.
	_ = q.listener.SetDeadline(deadline)
	for _, c := range conns {
		_ = c.SetReadDeadline(deadline)
	}
	q.wg.Wait()
	_ = q.listener.Close()
	close(q.out)
	_ = os.Remove(q.path)
}

func (q *Queue) accept() {
	defer q.wg.Done()
	for {
		conn, err := q.listener.Accept()
		if err != nil {
			return
		}
		q.mu.Lock()
		q.conns[conn] = struct{}{}
		if q.closed {
			_ = conn.SetReadDeadline(q.deadline)
		}
		q.wg.Add(1)
		q.mu.Unlock()
		go q.read(conn)
	}
}

// read forwards frames from one producer connection until EOF or, after
// Close, the drain deadline. A single goroutine per connection preserves
// that producer's FIFO order.
func (q *Queue) read(conn net.Conn) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		delete(q.conns, conn)
		q.mu.Unlock()
		_ = conn.Close()
	}()
	dec := json.NewDecoder(conn)
	for {
		var t Tagged
		if err := dec.Decode(&t); err != nil {
			return
		}
		q.deliver(t)
	}
}

// deliver sends without the closed check so frames decoded during the
// drain window still count as previously put.
func (q *Queue) deliver(t Tagged) {
	select {
	case q.out <- t:
	default:
	}
}

// RemoteQueue is a producer-only handle to a queue owned by another
// process.
type RemoteQueue struct {
	endpoint string

	mu       sync.Mutex
	conn     net.Conn
	enc      *json.Encoder
	broken   bool
	warnOnce sync.Once
}

// Dial connects a producer handle to the queue at endpoint.
func Dial(endpoint string) (*RemoteQueue, error) {
	conn, err := net.DialTimeout("unix", endpoint, 2*time.Second)
	if err != nil {
		return nil, errors.Wrapf(err, "dial handoff socket %s", endpoint)
	}
	return &RemoteQueue{endpoint: endpoint, conn: conn, enc: json.NewEncoder(conn)}, nil
}

// Endpoint returns the socket path this handle is connected to, so the
// handle itself can be snapshotted for further workers.
func (r *RemoteQueue) Endpoint() string {
	return r.endpoint
}

// Put writes t to the owning process. A transport failure is reported once
// on stderr and the handle goes dark; producers must never fail or block.
func (r *RemoteQueue) Put(t Tagged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken || r.conn == nil {
		return
	}
	if err := r.enc.Encode(t); err != nil {
		r.broken = true
		r.warnOnce.Do(func() {
			fmt.Fprintf(os.Stderr,
				"epic-logging: handoff channel %s failed, dropping further records from pid %d: %v\n",
				r.endpoint, os.Getpid(), err)
		})
	}
}

// Close releases the connection. Puts after Close are silently dropped.
func (r *RemoteQueue) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
