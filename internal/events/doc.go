// Package events defines the asynchronous printer events consumed by
// the task lifecycle manager and the in-memory emitter that dispatches
// them. Events are emitted synchronously from the printer connection's
// read loop, so handlers observe them one at a time in arrival order.
package events
