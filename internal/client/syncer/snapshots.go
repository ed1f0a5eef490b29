package syncer

import (
	"github.com/dmitrijs2005/autoledger/internal/client/mapper"
	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

// remoteKey identifies a remote record. Remote ids are unique per kind only.
type remoteKey struct {
	kind models.Kind
	id   int64
}

func keyOf(r models.RemoteExpense) remoteKey {
	return remoteKey{kind: r.Kind, id: r.RemoteID}
}

// snapshotIndex is the in-memory view of one vehicle's remote records for a
// single pass, kept current as the drain deletes and claims records.
type snapshotIndex struct {
	order        []remoteKey
	byKey        map[remoteKey]models.RemoteExpense
	fingerprints map[remoteKey]string
	// linked holds records referenced by a local row, claimed during the
	// drain, or named as the base of a queued operation.
	linked map[remoteKey]bool
}

func newSnapshotIndex(snaps []models.RemoteExpense) *snapshotIndex {
	idx := &snapshotIndex{
		byKey:        make(map[remoteKey]models.RemoteExpense, len(snaps)),
		fingerprints: make(map[remoteKey]string, len(snaps)),
		linked:       make(map[remoteKey]bool),
	}
	for _, s := range snaps {
		k := keyOf(s)
		if _, dup := idx.byKey[k]; dup {
			continue
		}
		idx.order = append(idx.order, k)
		idx.byKey[k] = s
		idx.fingerprints[k] = mapper.RemoteFingerprint(s)
	}
	return idx
}

func (idx *snapshotIndex) get(kind models.Kind, id int64) (models.RemoteExpense, string, bool) {
	k := remoteKey{kind: kind, id: id}
	s, ok := idx.byKey[k]
	return s, idx.fingerprints[k], ok
}

func (idx *snapshotIndex) remove(kind models.Kind, id int64) {
	delete(idx.byKey, remoteKey{kind: kind, id: id})
}

func (idx *snapshotIndex) markLinked(kind models.Kind, id int64) {
	idx.linked[remoteKey{kind: kind, id: id}] = true
}

// findUnlinked returns the first remote record of kind with fingerprint fp
// that no local row references. It covers a create that succeeded remotely
// while its local confirmation was lost.
func (idx *snapshotIndex) findUnlinked(kind models.Kind, fp string) (models.RemoteExpense, bool) {
	return idx.findFree(kind, fp, idx.linked)
}

// findFree returns the first remote record of kind with fingerprint fp whose
// key is not in taken.
func (idx *snapshotIndex) findFree(kind models.Kind, fp string, taken map[remoteKey]bool) (models.RemoteExpense, bool) {
	for _, k := range idx.order {
		s, ok := idx.byKey[k]
		if !ok || taken[k] || k.kind != kind {
			continue
		}
		if idx.fingerprints[k] == fp {
			return s, true
		}
	}
	return models.RemoteExpense{}, false
}

// each calls fn for the remaining records in fetch order.
func (idx *snapshotIndex) each(fn func(models.RemoteExpense, string)) {
	for _, k := range idx.order {
		if s, ok := idx.byKey[k]; ok {
			fn(s, idx.fingerprints[k])
		}
	}
}
