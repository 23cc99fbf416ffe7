// Package output delivers generated readings to the simulator's configured
// destinations.
//
//   - Console and File print "Patient ID: %d, Timestamp: %d, Label: %s, Data: %s"
//     lines; File keeps one <label>.txt per label.
//   - TCPServer and WebSocketServer broadcast "patientId,timestamp,label,data"
//     lines to every connected client and drop clients that fall behind.
//   - Shipper batches measurement records to the server's gRPC ingest service.
//     Write never blocks: when the buffer is full the oldest record is evicted.
//     Run reconnects with truncated exponential backoff (1s to 60s, ±25%
//     jitter); InvalidArgument, Unauthenticated and PermissionDenied discard
//     the batch instead of retrying.
//
// Multi fans one reading out to several outputs.
package output
