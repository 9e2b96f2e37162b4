package loggers

import (
	"log/slog"
	"os"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// NewConsole returns a logger at the given level that writes to stderr.
func NewConsole(name string, level slog.Level) *Logger {
	l := New(name, WithLevel(level))
	l.handlers = append(l.handlers, NewTextHandler(os.Stderr, l.level))
	return l
}

// NewFile returns a logger at the given level that writes to path,
// appending unless truncate is set.
//
// The file is guarded by an advisory lock at "<path>.lock" so two sessions
// (possibly in different processes) cannot interleave output in one file;
// construction fails while another holder is alive. Close releases the file
// and the lock.
func NewFile(name, path string, truncate bool, level slog.Level) (*Logger, error) {
	file, lock, err := openSinkFile(path, truncate)
	if err != nil {
		return nil, err
	}
	l := New(name, WithLevel(level))
	l.handlers = append(l.handlers, NewTextHandler(file, l.level))
	l.closers = append(l.closers, file, lockCloser{lock})
	return l, nil
}

// NewFileAndConsole returns a logger that writes to both path and stderr.
// File semantics match NewFile.
func NewFileAndConsole(name, path string, truncate bool, level slog.Level) (*Logger, error) {
	file, lock, err := openSinkFile(path, truncate)
	if err != nil {
		return nil, err
	}
	l := New(name, WithLevel(level))
	l.handlers = append(l.handlers,
		NewTextHandler(file, l.level),
		NewTextHandler(os.Stderr, l.level),
	)
	l.closers = append(l.closers, file, lockCloser{lock})
	return l, nil
}

func openSinkFile(path string, truncate bool) (*os.File, *flock.Flock, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "lock log file %s", path)
	}
	if !ok {
		return nil, nil, errors.Errorf("log file %s is held by another session", path)
	}
	flag := os.O_CREATE | os.O_WRONLY
	if truncate {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_APPEND
	}
	file, err := os.OpenFile(path, flag, 0o664)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, errors.Wrapf(err, "open log file %s", path)
	}
	return file, lock, nil
}

type lockCloser struct {
	lock *flock.Flock
}

func (c lockCloser) Close() error {
	return c.lock.Unlock()
}
