package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/conflicts"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/expenses"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/operations"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/syncmeta"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/vehicles"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var m RepositoryManager = NewSQLiteRepositoryManager()

	assert.IsType(t, &expenses.SQLiteRepository{}, m.Expenses(db))
	assert.IsType(t, &operations.SQLiteRepository{}, m.Operations(db))
	assert.IsType(t, &conflicts.SQLiteRepository{}, m.Conflicts(db))
	assert.IsType(t, &vehicles.SQLiteRepository{}, m.Vehicles(db))
	assert.IsType(t, &syncmeta.SQLiteRepository{}, m.SyncMeta(db))
	assert.IsType(t, &metadata.SQLiteRepository{}, m.Metadata(db))
}

func TestReposBoundToTx_RollBackTogether(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	m := NewSQLiteRepositoryManager()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM pending_operations WHERE id = \?`).
		WithArgs("op1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE expenses SET sync_state = \?, last_error = \?`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := m.Operations(tx).Delete(ctx, "op1"); err != nil {
			return err
		}
		return m.Expenses(tx).SetState(ctx, 1, "SYNCED", "")
	})
	require.ErrorContains(t, err, "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

var _ dbx.DBTX = (*sql.Tx)(nil)
