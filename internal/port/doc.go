// Package port implements port checking and fallback allocation for the
// devsession CLI.
//
// The Scanner answers a single question: can a TCP listener be bound on a
// port right now? It binds on all interfaces and releases the socket
// immediately, so a check leaves no trace.
//
// The Allocator walks a service's candidate list (preferred port first,
// then fallbacks in priority order) and returns the first port the Scanner
// reports as free:
//
//	resolve(4000, [4001, 4002]) → 4000 if free, else 4001 if free, else 4002, else none
//
// Checking is strictly sequential so that the first-in-list-wins rule holds.
// Exhausting the list is not an error; callers decide whether to start the
// service without a port override.
package port
