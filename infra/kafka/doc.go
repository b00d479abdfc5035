// Package kafka wraps the segmentio/kafka-go writer used as one of the
// broadcaster's publishers.
package kafka
