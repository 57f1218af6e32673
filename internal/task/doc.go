// Package task implements the print task lifecycle manager. The
// Manager owns the current-task pointer and the last observed printer
// state snapshot, exposes the client-facing task operations, and
// consumes printer events to drive task state transitions.
package task
