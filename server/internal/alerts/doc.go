// Package alerts runs the rule registry for a patient and delivers the
// findings.
//
// Engine.Evaluate is pure with respect to the store: it reads each rule's
// window, runs the rules in registry order and returns their alerts.
// Dispatcher turns alerts into Events with ids, keeps the last 200 in memory,
// and fans them out to sinks (log, webhooks for Teams, Slack or generic
// HTTP, NATS, and the WebSocket stream).
package alerts
