// Package syncer implements the sync orchestrator: one reconciliation pass
// of the local expense replica against a remote server.
//
// A pass discovers the vehicles in scope and, for each vehicle in turn,
// fetches the remote snapshots, drains the operation queue against them with
// fingerprint compare-and-swap, fetches again, reconciles the local and
// remote record sets and records bookkeeping. Passes are serialized by a
// SyncLock shared by every caller in the process.
//
// Only the orchestrator writes sync state, fingerprints and conflicts.
// Every pair of writes that must land together (drop an operation and flip
// its record, create a conflict and flip the record to CONFLICT) happens in
// one transaction, as does the whole reconciliation step of a vehicle.
package syncer
