// Package service holds Exchange, the only write entry point of the
// prediction market. It owns the market registry and the ledger and
// coordinates them with the command journal, the settlement outbox and
// snapshots. Transports such as gRPC sit on top of it.
package service
