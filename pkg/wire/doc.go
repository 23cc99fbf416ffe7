// Package wire defines the gRPC ingest service shared by the simulator and
// the server: message structs, a hand-written service descriptor and a JSON
// codec registered under the "json" content-subtype.
package wire
