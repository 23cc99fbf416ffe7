// Package rules holds the clinical rule evaluators. Each Rule is a pure
// function of a window of one patient's records: it filters the record types
// it cares about, sorts them explicitly, and returns zero or more alerts.
//
// Lookback per rule:
//
//	critical pressure, pressure trend   24h
//	low saturation, rapid oxygen drop   10m
//	abnormal heart rate, irregular beat 1h
//	hypotensive hypoxemia               10m
//
// Default returns the registry in the order the engine runs it.
package rules
