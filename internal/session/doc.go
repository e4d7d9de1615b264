// Package session runs a development session: it checks for conflicts,
// cleans them up, allocates ports, spawns every configured service as a
// child process and supervises the group until interrupted.
//
// Children are started in their own process groups (Setpgid, plus
// Pdeathsig on Linux) and signals are delivered to the whole group, so a
// launcher such as `npm run dev` and the server it starts stop together.
// Termination is sent exactly once and never awaited.
//
// StateStore keeps a per-project advisory lock (gofrs/flock) for the
// lifetime of the orchestrator and a YAML record of the spawned children,
// which is what the stop and status commands read.
package session
