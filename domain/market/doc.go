// Package market holds market metadata and lifecycle. A market owns
// an ordered set of outcomes and each outcome owns one order book.
// The only transition is Active -> Resolved, and it is terminal.
package market
