// Package mapper holds the pure functions of the sync engine: the content
// fingerprint of an expense, and conversions between the remote wire shape,
// the local record and the conflict-log snapshots.
//
// A fingerprint is computed identically for local records and remote
// snapshots, so two independently authored copies of the same content hash
// equal. It is used to detect remote changes made after a local edit was
// based on a snapshot, and to relink a local record whose create succeeded
// remotely but whose link was never recorded.
package mapper
