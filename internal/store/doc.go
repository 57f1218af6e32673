// Package store defines the persistence interfaces used by the task
// lifecycle manager, along with the sentinel errors shared by all
// store implementations. Concrete implementations live under
// internal/platform.
package store
