package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/mapper"
	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/remote"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/autoledger/internal/client/services"
	"github.com/dmitrijs2005/autoledger/internal/client/store"
	"github.com/dmitrijs2005/autoledger/internal/logging"
	"github.com/dmitrijs2005/autoledger/internal/netx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const serverID = "home"

var creds = models.Credentials{ServerID: serverID, URL: "http://remote.invalid", APIKey: "secret"}

// fakeRemote is an in-memory authoritative store.
type fakeRemote struct {
	mu sync.Mutex

	vehicles    []models.Vehicle
	vehiclesErr error
	records     map[remoteKey]models.RemoteExpense
	nextID      int64

	fetchErr     map[models.Kind]error
	createErr    func(kind models.Kind) error
	deleteErr    error
	deleteAs404  bool
	vehicleGate  chan struct{}
	vehicleEnter chan struct{}
	// onFetch runs before each Fetch with the number of fetches of that
	// kind so far, including this one.
	onFetch func(kind models.Kind, n int)
	fetches map[models.Kind]int

	creates  int
	deletes  int
	inFlight int
	maxSeen  int
}

func newFakeRemote(vehicleIDs ...int64) *fakeRemote {
	f := &fakeRemote{
		records:  make(map[remoteKey]models.RemoteExpense),
		nextID:   100,
		fetchErr: make(map[models.Kind]error),
		fetches:  make(map[models.Kind]int),
	}
	for _, id := range vehicleIDs {
		f.vehicles = append(f.vehicles, models.Vehicle{ID: id, Year: 2015, Make: "Skoda", Model: "Octavia"})
	}
	return f
}

func statusErr(code int) error {
	return &netx.StatusError{StatusCode: code, Status: fmt.Sprintf("%d %s", code, http.StatusText(code)), Body: "{}"}
}

func (f *fakeRemote) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	gate, enter := f.vehicleGate, f.vehicleEnter
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vehiclesErr != nil {
		return nil, &remote.NetworkError{Op: "fetch vehicles", Err: f.vehiclesErr}
	}
	return append([]models.Vehicle(nil), f.vehicles...), nil
}

func (f *fakeRemote) Fetch(ctx context.Context, kind models.Kind, vehicleID int64) ([]models.RemoteExpense, error) {
	f.mu.Lock()
	f.fetches[kind]++
	n, hook := f.fetches[kind], f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(kind, n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[kind]; err != nil {
		return nil, &remote.NetworkError{Op: "fetch " + string(kind), Err: err}
	}
	var out []models.RemoteExpense
	for k, r := range f.records {
		if k.kind == kind && r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID < out[j].RemoteID })
	return out, nil
}

func (f *fakeRemote) Create(ctx context.Context, kind models.Kind, vehicleID int64, fields models.ExpenseFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(kind); err != nil {
			return &remote.NetworkError{Op: "create " + string(kind), Err: err}
		}
	}
	f.creates++
	f.nextID++
	r := models.RemoteExpense{VehicleID: vehicleID, RemoteID: f.nextID, Kind: kind, ExpenseFields: mapper.Normalize(kind, fields)}
	f.records[keyOf(r)] = r
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, kind models.Kind, remoteID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return &remote.NetworkError{Op: "delete " + string(kind), Err: f.deleteErr}
	}
	k := remoteKey{kind: kind, id: remoteID}
	if _, ok := f.records[k]; !ok || f.deleteAs404 {
		delete(f.records, k)
		return &remote.NetworkError{Op: "delete " + string(kind), Err: statusErr(http.StatusNotFound)}
	}
	f.deletes++
	delete(f.records, k)
	return nil
}

// put stores a record as if another client had written it.
func (f *fakeRemote) put(r models.RemoteExpense) models.RemoteExpense {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.RemoteID == 0 {
		f.nextID++
		r.RemoteID = f.nextID
	}
	r.ExpenseFields = mapper.Normalize(r.Kind, r.ExpenseFields)
	f.records[keyOf(r)] = r
	return r
}

func (f *fakeRemote) remove(kind models.Kind, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, remoteKey{kind: kind, id: id})
}

func (f *fakeRemote) all() []models.RemoteExpense {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RemoteExpense, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID < out[j].RemoteID })
	return out
}

func (f *fakeRemote) calls() (creates, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.deletes
}

// testClock ticks one second per reading.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	t      *testing.T
	db     *sql.DB
	repos  *repomanager.SQLiteRepositoryManager
	remote *fakeRemote
	orch   *Orchestrator
	svc    services.ExpenseService
	clock  *testClock
}

func newHarness(t *testing.T, rem *fakeRemote, opts Options) *harness {
	t.Helper()
	db, err := store.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	if opts.Now == nil {
		opts.Now = clock.now
	}
	repos := repomanager.NewSQLiteRepositoryManager()
	factory := func(models.Credentials) remote.Gateway { return rem }

	return &harness{
		t:      t,
		db:     db,
		repos:  repos,
		remote: rem,
		orch:   NewOrchestrator(db, repos, factory, NewSyncLock(), logging.Nop(), opts),
		svc:    services.NewExpenseService(db, repos, services.WithClock(clock.now)),
		clock:  clock,
	}
}

func (h *harness) sync() *Report {
	h.t.Helper()
	rep, err := h.orch.SyncServer(context.Background(), creds)
	require.NoError(h.t, err)
	return rep
}

func (h *harness) locals(vehicleID int64) []*models.Expense {
	h.t.Helper()
	rows, err := h.repos.Expenses(h.db).ListForVehicle(context.Background(), serverID, vehicleID)
	require.NoError(h.t, err)
	return rows
}

func (h *harness) get(localID int64) *models.Expense {
	h.t.Helper()
	e, err := h.repos.Expenses(h.db).GetByLocalID(context.Background(), localID)
	require.NoError(h.t, err)
	return e
}

func (h *harness) pending() []*models.Operation {
	h.t.Helper()
	ops, err := h.repos.Operations(h.db).ListPendingForServer(context.Background(), serverID)
	require.NoError(h.t, err)
	return ops
}

func (h *harness) conflicts() []*models.Conflict {
	h.t.Helper()
	list, err := h.repos.Conflicts(h.db).ListUnresolved(context.Background(), serverID)
	require.NoError(h.t, err)
	return list
}

func (h *harness) add(vehicleID int64, kind models.Kind, fields models.ExpenseFields) *models.Expense {
	h.t.Helper()
	e, err := h.svc.Add(context.Background(), serverID, vehicleID, kind, fields)
	require.NoError(h.t, err)
	return e
}

func fields(day, cost string, odometer int64, desc string) models.ExpenseFields {
	d, err := time.Parse(models.DateLayout, day)
	if err != nil {
		panic(err)
	}
	return models.ExpenseFields{
		Date:        d,
		Cost:        decimal.RequireFromString(cost),
		Odometer:    models.Int64(odometer),
		Description: desc,
	}
}

func fuelFields(day, cost, liters string, odometer int64) models.ExpenseFields {
	f := fields(day, cost, odometer, "")
	f.Liters = decimal.NewNullDecimal(decimal.RequireFromString(liters))
	f.FillToFull = models.Bool(true)
	f.MissedFill = models.Bool(false)
	return f
}

func remoteRecord(vehicleID int64, kind models.Kind, f models.ExpenseFields) models.RemoteExpense {
	return models.RemoteExpense{VehicleID: vehicleID, Kind: kind, ExpenseFields: f}
}
