// Package domain defines the core business entities and errors for
// print task tracking.
package domain
