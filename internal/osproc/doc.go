// Package osproc is the single pluggable collaborator through which
// devsession touches the OS process and socket tables.
//
// It exposes four primitives:
//
//   - ListProcessesByName: processes whose image name matches exactly
//     (names over 15 characters also match on argv[0], since Linux cuts comm)
//   - ListListenersByPort: processes listening on a TCP port
//   - Terminate:           send a termination signal to one pid
//   - CheckPort:           bind/release a test socket
//
// System implements them with one adapter per OS family. On POSIX systems
// it shells out to ps and lsof (falling back to ss on Linux) and signals
// with kill(2). On Windows it uses tasklist, netstat and taskkill. The text
// parsers for every command
// live in parse.go without build tags so all of them are tested on any
// platform.
//
// Everything above this package (inspector, reaper, detector) is
// OS-agnostic and depends only on the Primitives interface.
package osproc
