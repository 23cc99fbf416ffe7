// Package ws implements the alert stream for cardiowatch-server.
//
// Hub is an alerts.Sink: every dispatched event is pushed to all connected
// clients immediately. New clients first receive the most recent events, and
// Run broadcasts a summary on a fixed interval.
//
// Message format sent to clients:
//
//	{"event": "recent",  "data": [ /* events, newest first */ ]}
//	{"event": "alert",   "data": { /* one event */ }}
//	{"event": "summary", "data": {"generated_at": ..., "patients": 3, ...}}
//
// The upgrader accepts all origins. The server mounts the hub at /ws/alerts.
package ws
