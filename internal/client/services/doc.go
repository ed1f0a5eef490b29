// Package services contains the application services the UI calls.
//
// ExpenseService applies local edits: every mutation writes the record and
// queues the matching operation in one transaction, so the edit survives a
// crash and is picked up by the next sync pass. Local edits never wait for
// the sync lock.
//
// ConflictService resolves entries of the conflict log, either by keeping
// the local edit (which is queued again against a fresh base) or by
// accepting the remote state.
package services
