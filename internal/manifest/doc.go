// Package manifest holds the durable record of a recording session: an
// ordered list of invocation entries plus the serialization format of the
// manifest file that sits at the root of every recording directory.
//
// Two entry variants exist. A RunEntry records one process invocation and
// names the sibling stdio blob files that hold its captured output. A
// CanRunEntry records one executable-resolution probe and its boolean
// answer.
//
// Ordering is the contract. Entries are appended in invocation order during
// recording and consumed in first-match-wins order during replay, which is
// what lets replay line recorded invocations up against re-issued ones
// without any stronger identity than the sanitized command itself. Lookups
// deliberately ignore working directory and environment: both vary between
// the machine that recorded and the machine that replays, and matching on
// them would reject otherwise-identical invocations.
//
// A matched entry is consumed. FindPendingRunEntry and
// FindPendingCanRunEntry mark the entry they return, so no later lookup can
// return it again regardless of criteria.
//
// The package performs no locking; the recording and replay managers
// serialize access to a Manifest with their own mutex.
package manifest
