// Package exit is the durable outbox for settlement events, backed by
// pebble. The exchange writes NEW records; the broadcaster moves them
// through SENT to ACKED (or FAILED for a later retry).
package exit
