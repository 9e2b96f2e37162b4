package funnel

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/Cybereason/epic-logging/loggers"
)

// DefaultSinkName is the sink logger name used by config-built sessions.
const DefaultSinkName = "funnel"

// ErrNoDestination reports a configuration with nowhere to write: no file
// path and console output explicitly disabled.
var ErrNoDestination = errors.New("funnel: no log destination configured")

var _ Sink = (*loggers.Logger)(nil)

// Config describes a ready-made aggregation session: an optional log file,
// optional console output, and one level shared by the sink and the session
// threshold.
//
// Console is tri-state: unset means console output is on exactly when no
// file path is given.
type Config struct {
	Path     string `toml:"path"`
	Truncate bool   `toml:"truncate"`
	Level    string `toml:"level"`
	Console  *bool  `toml:"console"`
}

// LoadConfig reads a session configuration from a TOML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// NewFromConfig builds an aggregation session with a preconfigured sink.
// The aggregator owns the sink: Stop closes the log file and releases its
// lock.
func NewFromConfig(cfg Config, opts ...AggregatorOption) (*Aggregator, error) {
	console := cfg.Path == ""
	if cfg.Console != nil {
		console = *cfg.Console
	}
	if cfg.Path == "" && !console {
		return nil, ErrNoDestination
	}
	level := loggers.ParseLevel(cfg.Level)

	var (
		sink *loggers.Logger
		err  error
	)
	switch {
	case cfg.Path != "" && console:
		sink, err = loggers.NewFileAndConsole(DefaultSinkName, cfg.Path, cfg.Truncate, level)
	case cfg.Path != "":
		sink, err = loggers.NewFile(DefaultSinkName, cfg.Path, cfg.Truncate, level)
	default:
		sink = loggers.NewConsole(DefaultSinkName, level)
	}
	if err != nil {
		return nil, err
	}

	a := NewAggregator(sink, opts...)
	a.closeSink = sink
	return a, nil
}
