// Package backbone is the process-wide dispatch point that aggregation
// listens on. Every record emitted through the loggers package (or through
// the slog bridge) is dispatched synchronously to the backbone's registered
// listeners, subject to a single process-wide minimum level.
//
// The backbone is an explicit, injectable object rather than an ambient
// singleton so tests and nested sessions can run against private instances;
// Default returns the shared process-wide one.
package backbone
