// Package metrics holds the server's Prometheus collectors, the /metrics
// handler, an HTTP middleware, and Summary, which flattens the registry into
// a name to value map for the stats endpoint.
package metrics
