package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/autoledger/internal/client/store"
	"github.com/dmitrijs2005/autoledger/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const server = "home"

type fixture struct {
	db      *sql.DB
	repos   *repomanager.SQLiteRepositoryManager
	clock   time.Time
	changes int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &fixture{db: db, repos: repomanager.NewSQLiteRepositoryManager(), clock: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (f *fixture) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) expenses() ExpenseService {
	return NewExpenseService(f.db, f.repos, WithClock(f.now), WithChangeHook(func() { f.changes++ }))
}

func (f *fixture) ops(t *testing.T, localID int64) []*models.Operation {
	t.Helper()
	all, err := f.repos.Operations(f.db).ListPendingForServer(context.Background(), server)
	require.NoError(t, err)
	var ops []*models.Operation
	for _, op := range all {
		if op.LocalID == localID {
			ops = append(ops, op)
		}
	}
	return ops
}

func serviceFields(day string, cost string) models.ExpenseFields {
	d, _ := time.Parse(models.DateLayout, day)
	return models.ExpenseFields{
		Date:        d,
		Cost:        decimal.RequireFromString(cost),
		Odometer:    models.Int64(12000),
		Description: "oil change",
	}
}

// linkedRecord stores a SYNCED record as a completed pass would leave it.
func (f *fixture) linkedRecord(t *testing.T, remoteID int64, fp string) *models.Expense {
	t.Helper()
	e := &models.Expense{
		ServerID:      server,
		VehicleID:     1,
		RemoteID:      models.Int64(remoteID),
		Kind:          models.KindService,
		ExpenseFields: serviceFields("2024-01-10", "50.00"),
		State:         models.StateSynced,
		Fingerprint:   fp,
		UpdatedAt:     f.clock,
	}
	require.NoError(t, f.repos.Expenses(f.db).Insert(context.Background(), e))
	return e
}

func TestAdd_InsertsPendingCreateWithOperation(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()

	e, err := svc.Add(ctx, server, 1, models.KindService, serviceFields("2024-02-01", "99.9"))
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingCreate, e.State)
	assert.Equal(t, "99.9", e.Cost.String())
	assert.Equal(t, 1, f.changes)

	got, err := svc.Get(ctx, e.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingCreate, got.State)
	assert.Nil(t, got.RemoteID)

	ops := f.ops(t, e.LocalID)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpCreate, ops[0].Kind)
	assert.False(t, ops[0].Payload.HasBase())
	assert.Equal(t, int64(1), ops[0].VehicleID)
}

func TestAdd_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()

	_, err := svc.Add(ctx, server, 1, models.Kind("PARKING"), serviceFields("2024-02-01", "1"))
	assert.ErrorIs(t, err, common.ErrInvalidKind)

	_, err = svc.Add(ctx, server, 1, models.KindService, models.ExpenseFields{Cost: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, common.ErrInvalidFields)

	_, err = svc.Add(ctx, server, 1, models.KindService, serviceFields("2024-02-01", "-1"))
	assert.ErrorIs(t, err, common.ErrInvalidFields)

	assert.Zero(t, f.changes)
}

func TestAdd_DropsFieldsForeignToKind(t *testing.T) {
	f := newFixture(t)
	fields := serviceFields("2024-02-01", "10")
	fields.Liters = decimal.NewNullDecimal(decimal.NewFromInt(40))
	fields.Recurring = models.Bool(true)

	e, err := f.expenses().Add(context.Background(), server, 1, models.KindService, fields)
	require.NoError(t, err)
	assert.False(t, e.Liters.Valid)
	assert.Nil(t, e.Recurring)
}

func TestUpdate_UnsyncedRecordKeepsQueuedCreate(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()

	e, err := svc.Add(ctx, server, 1, models.KindService, serviceFields("2024-02-01", "10"))
	require.NoError(t, err)

	upd, err := svc.Update(ctx, e.LocalID, models.KindRepair, serviceFields("2024-02-02", "20"))
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingCreate, upd.State)
	assert.Equal(t, models.KindRepair, upd.Kind)

	ops := f.ops(t, e.LocalID)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpCreate, ops[0].Kind)
}

func TestUpdate_SyncedRecordQueuesUpdateWithBase(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()
	e := f.linkedRecord(t, 77, "fp-77")

	upd, err := svc.Update(ctx, e.LocalID, models.KindService, serviceFields("2024-01-10", "55.00"))
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingUpdate, upd.State)

	ops := f.ops(t, e.LocalID)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpUpdate, ops[0].Kind)
	require.True(t, ops[0].Payload.HasBase())
	assert.Equal(t, int64(77), *ops[0].Payload.BaseRemoteID)
	assert.Equal(t, models.KindService, *ops[0].Payload.BaseType)
	assert.Equal(t, "fp-77", *ops[0].Payload.BaseFingerprint)

	// A second edit keeps the original base.
	_, err = svc.Update(ctx, e.LocalID, models.KindService, serviceFields("2024-01-10", "60.00"))
	require.NoError(t, err)
	ops = f.ops(t, e.LocalID)
	require.Len(t, ops, 1)
	assert.Equal(t, "fp-77", *ops[0].Payload.BaseFingerprint)

	got, err := svc.Get(ctx, e.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "60", got.Cost.String())
}

func TestDelete_SyncedRecordQueuesDeleteWithBase(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()
	e := f.linkedRecord(t, 5, "fp-5")

	require.NoError(t, svc.Delete(ctx, e.LocalID))

	got, err := svc.Get(ctx, e.LocalID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, models.StatePendingDelete, got.State)

	ops := f.ops(t, e.LocalID)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpDelete, ops[0].Kind)
	assert.Equal(t, int64(5), *ops[0].Payload.BaseRemoteID)

	list, err := svc.List(ctx, server, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, svc.Delete(ctx, e.LocalID), common.ErrRecordDeleted)
	_, err = svc.Update(ctx, e.LocalID, models.KindService, serviceFields("2024-01-10", "1"))
	assert.ErrorIs(t, err, common.ErrRecordDeleted)
}

func TestDelete_ReplacesQueuedUpdateKeepingItsBase(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()
	e := f.linkedRecord(t, 9, "fp-9")

	_, err := svc.Update(ctx, e.LocalID, models.KindService, serviceFields("2024-01-10", "70"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, e.LocalID))

	ops := f.ops(t, e.LocalID)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpDelete, ops[0].Kind)
	assert.Equal(t, int64(9), *ops[0].Payload.BaseRemoteID)
	assert.Equal(t, "fp-9", *ops[0].Payload.BaseFingerprint)
}

func TestDelete_NeverSyncedRecordQueuesBehindCreate(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()

	e, err := svc.Add(ctx, server, 1, models.KindTax, serviceFields("2024-02-01", "300"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, e.LocalID))

	ops := f.ops(t, e.LocalID)
	require.Len(t, ops, 2)
	assert.Equal(t, models.OpCreate, ops[0].Kind)
	assert.Equal(t, models.OpDelete, ops[1].Kind)
	assert.False(t, ops[1].Payload.HasBase())
}

func TestEdits_RejectConflictedRecord(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()
	e := f.linkedRecord(t, 3, "fp-3")
	require.NoError(t, f.repos.Expenses(f.db).SetState(ctx, e.LocalID, models.StateConflict, "changed"))

	_, err := svc.Update(ctx, e.LocalID, models.KindService, serviceFields("2024-01-10", "1"))
	assert.ErrorIs(t, err, common.ErrRecordInConflict)
	assert.ErrorIs(t, svc.Delete(ctx, e.LocalID), common.ErrRecordInConflict)
	assert.Empty(t, f.ops(t, e.LocalID))
}

func TestUpdate_MissingRecord(t *testing.T) {
	f := newFixture(t)
	_, err := f.expenses().Update(context.Background(), 404, models.KindService, serviceFields("2024-01-10", "1"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRetryFailed_ResetsAttempts(t *testing.T) {
	f := newFixture(t)
	svc := f.expenses()
	ctx := context.Background()

	e, err := svc.Add(ctx, server, 1, models.KindService, serviceFields("2024-02-01", "10"))
	require.NoError(t, err)
	op := f.ops(t, e.LocalID)[0]
	require.NoError(t, f.repos.Operations(f.db).MarkFailed(ctx, op.ID, "503 Service Unavailable"))
	before := f.changes

	n, err := svc.RetryFailed(ctx, server)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, f.ops(t, e.LocalID)[0].Attempts)
	assert.Equal(t, before+1, f.changes)
}
