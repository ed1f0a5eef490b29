// Package expenses is the record store: durable expense rows tagged with
// their sync state and remote lineage (remote id, fingerprint).
//
// The store owns no sync logic. Callers decide state transitions; the
// repository only persists them. All methods work on a dbx.DBTX, so the
// same repository can be bound to *sql.DB or to a transaction.
package expenses
