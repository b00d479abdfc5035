// Package wal holds what the entry journal and the exit outbox share:
// frame checksums and payload serializers.
//
// The entry journal (wal/entry) records accepted commands so the
// exchange can be rebuilt by replay. The exit outbox (wal/exit) holds
// settlement events until the broadcaster has delivered them.
package wal
