// Package store holds the per-patient measurement timelines the alert engine
// reads. Memory is the default thread-safe backend; SQLite persists records
// through database/sql. Both answer range queries with an inclusive start and
// an exclusive end, and neither guarantees an order: callers sort.
package store
