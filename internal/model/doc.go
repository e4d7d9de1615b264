// Package model defines the domain types and value objects for the
// devsession CLI.
//
// This package contains pure data structures with no external dependencies.
// Service descriptors are loaded once from configuration and never change
// for the lifetime of a session. Conflict records, resolved ports and child
// handles are transient runtime values owned by the session orchestrator;
// nothing here is persisted except the small session state file written by
// the session package.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
