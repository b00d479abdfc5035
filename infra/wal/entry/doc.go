// Package entry is the append-only command journal.
//
// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4], big endian,
// CRC over header and payload. Segments are named segment-NNNNNN.wal
// and replayed in name order; sequence numbers must strictly increase.
package entry
