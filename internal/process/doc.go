// Package process answers "who is running / who holds this port" and
// terminates stale processes.
//
// Inspector is read-only. Every query failure (missing tool, permission
// denied, unparseable output) is logged at debug level and degrades to a
// false, zero or empty result, so a host that cannot be inspected simply
// looks clean.
//
// Reaper is fire-and-forget: it issues termination requests and reports
// whether any progress was made, without waiting for the targets to exit.
// A target that already exited counts as progress.
//
// Both depend only on osproc.Primitives. Docker containers that publish a
// port are handled through the optional ContainerSource and
// ContainerStopper collaborators.
package process
