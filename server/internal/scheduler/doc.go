// Package scheduler runs the alert engine over every patient on a fixed
// interval and, when enabled, for a single patient right after a record is
// stored. Per-patient evaluations are throttled with golang.org/x/time/rate.
package scheduler
