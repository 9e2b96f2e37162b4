// Package worker creates OS worker processes by re-invoking the current
// executable with a registered entry-point name. Go cannot transplant live
// state into a child the way fork-based runtimes do, so anything a worker
// needs at startup travels as serializable hook payloads in the
// environment.
//
// The flow has three parts. Entry points are bound to names with Register
// (from init functions, so parent and child agree). Processes are built by
// the package's current Factory, which a library can Swap out for a
// wrapping one and restore later. Init, called first thing in main or
// TestMain, detects a worker invocation: it runs the Setup of every
// attached hook, then the entry point, then the teardowns in reverse
// order on every exit path.
package worker
