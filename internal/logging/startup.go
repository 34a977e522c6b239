package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the service configuration, storage backend and
// feature flags, then emits a single structured event summarising how the
// process was started. Secrets are never registered, only whether they are set.
type StartupLogger struct {
	name         string
	version      string
	initDuration time.Duration

	storage  map[string]string
	models   map[string]string
	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for the given command name.
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		storage:  make(map[string]string),
		models:   make(map[string]string),
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Version sets the build version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Storage registers a storage setting (backend name, path, bucket, table).
func (s *StartupLogger) Storage(label, value string) *StartupLogger {
	s.storage[label] = value
	return s
}

// Model registers a remote model identifier used for an operation.
func (s *StartupLogger) Model(operation, id string) *StartupLogger {
	s.models[operation] = id
	return s
}

// Feature registers a boolean feature flag (e.g. "credential", "logFile").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Event builds the summary event on the given logger without sending it.
func (s *StartupLogger) Event(l *zerolog.Logger) *zerolog.Event {
	evt := l.Info()

	proc := zerolog.Dict().
		Str("name", s.name).
		Int("pid", os.Getpid()).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH)
	if s.version != "" {
		proc = proc.Str("version", s.version)
	}
	evt = evt.Dict("process", proc)

	if len(s.storage) > 0 {
		evt = evt.Dict("storage", dictFromMap(s.storage))
	}
	if len(s.models) > 0 {
		evt = evt.Dict("models", dictFromMap(s.models))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}
	return evt
}

// Log emits the summary on the global logger.
func (s *StartupLogger) Log() {
	s.Event(&log.Logger).Msg("Startup complete")
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
