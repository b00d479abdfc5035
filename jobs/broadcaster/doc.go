// Package broadcaster drains the settlement outbox to Kafka.
//
// Delivery is at-least-once: a record is marked SENT before publishing and
// ACKED only after the broker confirms, so a crash in between resends it.
package broadcaster
