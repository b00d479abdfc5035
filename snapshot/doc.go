// Package snapshot persists the full exchange state as one JSON document.
//
// The document is the unit of backup: the writer replaces market_data.json
// atomically and keeps a bounded number of timestamped copies next to it.
// Journal records with a sequence above Document.Seq are replayed on top.
package snapshot
