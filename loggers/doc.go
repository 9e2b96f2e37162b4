// Package loggers builds the named loggers that sit at both ends of an
// aggregation session: ordinary emitters scattered through an application,
// and the sink logger a session funnels everything into.
//
// A Logger publishes every record onto a backbone (where interceptors can
// pick it up) and renders it through its own slog output handlers. The
// preconfigured constructors cover the common console/file/both sinks;
// prefer them over hand-rolled handler wiring so records keep the same
// on-disk shape everywhere.
package loggers
