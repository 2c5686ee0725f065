// Package notify implements the notification outbox. Payment outcomes and
// wallet provisioning notices addressed to users who have never contacted
// the service are parked here and drained the first time the recipient
// shows up. Backends cover an in-memory store for tests, Redis lists for
// production, and MySQL for installations without Redis.
package notify
