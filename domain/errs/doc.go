// Package errs defines the failure kinds returned by the exchange core.
//
// Every rejection is synchronous and leaves state untouched. Callers
// branch on Kind; the structured Needed/Available fields carry the
// amounts behind funds and position shortfalls so adapters can render
// their own messages.
package errs
