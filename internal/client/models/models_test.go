package models

import (
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/autoledger/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds() {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("fuel")
	require.ErrorIs(t, err, common.ErrInvalidKind)
}

func TestKind_FieldApplicability(t *testing.T) {
	assert.True(t, KindFuel.HasFuelFields())
	assert.False(t, KindFuel.HasRecurring())
	assert.True(t, KindTax.HasRecurring())
	assert.False(t, KindTax.HasFuelFields())
	for _, k := range []Kind{KindService, KindRepair, KindUpgrade} {
		assert.False(t, k.HasFuelFields(), k)
		assert.False(t, k.HasRecurring(), k)
	}
}

func TestParseSyncState(t *testing.T) {
	st, err := ParseSyncState("PENDING_DELETE")
	require.NoError(t, err)
	assert.Equal(t, StatePendingDelete, st)
	assert.True(t, st.IsPending())
	assert.False(t, StateConflict.IsPending())

	_, err = ParseSyncState("DIRTY")
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestParseOperationKind(t *testing.T) {
	k, err := ParseOperationKind("UPDATE")
	require.NoError(t, err)
	assert.Equal(t, OpUpdate, k)

	_, err = ParseOperationKind("MERGE")
	require.ErrorIs(t, err, common.ErrInvalidOperation)
}

func TestBaseFromExpense(t *testing.T) {
	e := &Expense{Kind: KindFuel, RemoteID: Int64(12), Fingerprint: "abc"}
	p := BaseFromExpense(e)
	require.True(t, p.HasBase())
	assert.Equal(t, int64(12), *p.BaseRemoteID)
	assert.Equal(t, KindFuel, *p.BaseType)
	assert.Equal(t, "abc", *p.BaseFingerprint)

	*e.RemoteID = 99
	assert.Equal(t, int64(12), *p.BaseRemoteID, "payload must not alias the record")

	empty := BaseFromExpense(&Expense{Kind: KindTax})
	assert.False(t, empty.HasBase())
	assert.Nil(t, empty.BaseType)
	assert.Nil(t, empty.BaseFingerprint)

	unlinked := BaseFromExpense(&Expense{Kind: KindTax, Fingerprint: "fp"})
	assert.False(t, unlinked.HasBase())
	require.NotNil(t, unlinked.BaseType)
	assert.Equal(t, KindTax, *unlinked.BaseType)
	assert.Equal(t, "fp", *unlinked.BaseFingerprint)
}

func TestOperationPayload_JSONShape(t *testing.T) {
	b, err := json.Marshal(OperationPayload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"baseRemoteId":null,"baseType":null,"baseFingerprint":null}`, string(b))

	k := KindRepair
	fp := "f"
	b, err = json.Marshal(OperationPayload{BaseRemoteID: Int64(5), BaseType: &k, BaseFingerprint: &fp})
	require.NoError(t, err)
	assert.JSONEq(t, `{"baseRemoteId":5,"baseType":"REPAIR","baseFingerprint":"f"}`, string(b))
}
