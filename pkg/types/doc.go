// Package types defines the data model shared by the server and the simulator:
// measurement records, the alert condition catalog, and the sentinel errors
// the core reports to its callers.
package types
