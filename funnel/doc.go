// Package funnel aggregates log records from an entire process tree into a
// single sink logger.
//
// A session wires four pieces together: an Interceptor installed on the
// backbone captures every record emitted in the process; a Queue carries
// tagged records from any number of producers (threads and worker
// processes) to exactly one consumer over a unix domain socket; a consumer
// goroutine filters, attributes, and dispatches the records into the sink;
// and a spawn-aware worker factory hands the installed interceptors to new
// worker processes so the whole tree feeds the same queue.
//
// Aggregator owns one session. Sessions nest: each Aggregator installs its
// own interceptor and every record emitted inside both windows reaches both
// sinks, wrapped once per session; the handled-marker on dispatched records
// keeps a sink's output from being re-ingested as fresh input.
package funnel
