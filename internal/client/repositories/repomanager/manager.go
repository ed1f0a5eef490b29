// Package repomanager vends SQLite repositories bound to a dbx.DBTX, so a
// caller can get the same set of repositories over *sql.DB or inside a
// transaction opened with dbx.WithTx.
package repomanager

import (
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/conflicts"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/expenses"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/operations"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/syncmeta"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/vehicles"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
)

type RepositoryManager interface {
	Expenses(db dbx.DBTX) expenses.Repository
	Operations(db dbx.DBTX) operations.Repository
	Conflicts(db dbx.DBTX) conflicts.Repository
	Vehicles(db dbx.DBTX) vehicles.Repository
	SyncMeta(db dbx.DBTX) syncmeta.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

// SQLiteRepositoryManager vends SQLite-backed repository implementations.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Expenses(db dbx.DBTX) expenses.Repository {
	return expenses.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Operations(db dbx.DBTX) operations.Repository {
	return operations.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Conflicts(db dbx.DBTX) conflicts.Repository {
	return conflicts.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Vehicles(db dbx.DBTX) vehicles.Repository {
	return vehicles.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) SyncMeta(db dbx.DBTX) syncmeta.Repository {
	return syncmeta.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}
