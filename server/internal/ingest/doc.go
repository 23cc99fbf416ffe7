// Package ingest moves measurement samples into the record store.
//
// Every path goes through Recorder.AddRecord: the gRPC Receiver, the
// streaming Client (WebSocket or TCP, reconnecting with backoff), the
// FileReader for simulator file output, and the REST API.
package ingest
