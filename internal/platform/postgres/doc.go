// Package postgres implements the store interfaces on top of a single
// namespaced key-value table (kv_entries) in PostgreSQL. Each entry is
// one row keyed by (namespace, key) with a JSONB value, giving every
// write atomic single-key upsert semantics.
package postgres
