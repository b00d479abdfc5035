// Package orderbook implements the per-outcome continuous double
// auction. Each side is a red-black tree of price levels and each
// level is a FIFO queue, which gives price-time priority.
//
// A book is single-writer: it never touches balances or positions.
// The caller escrows before inserting and settles the Match values
// the book returns.
package orderbook
