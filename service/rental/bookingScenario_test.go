// service/rental/bookingScenario_test.go
package rental

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ARUSH-R/rent-and-return/model"
	productrepo "github.com/ARUSH-R/rent-and-return/repository/product"
	rrepo "github.com/ARUSH-R/rent-and-return/repository/rental"
)

// fakeStore is an in-memory stand-in for the rental and product repositories,
// enforcing the same guards the SQL does: stock never below zero, one open
// rental per user, conditional status transitions.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*model.Product
	rentals  map[int64]*model.Rental
}

func newFakeStore(products ...*model.Product) *fakeStore {
	fs := &fakeStore{products: map[int64]*model.Product{}, rentals: map[int64]*model.Rental{}}
	for _, p := range products {
		fs.products[p.ID] = p
	}
	return fs
}

var (
	_ Repo          = (*fakeStore)(nil)
	_ ProductReader = fakeCatalog{}
)

// fakeCatalog exposes the store's products through the read-only lookup the
// booking engine uses. A separate type because the store's own ByID returns
// rentals.
type fakeCatalog struct{ fs *fakeStore }

func (fc fakeCatalog) ByID(ctx context.Context, id int64) (*model.Product, error) {
	fc.fs.mu.Lock()
	defer fc.fs.mu.Unlock()
	p, ok := fc.fs.products[id]
	if !ok {
		return nil, productrepo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (fs *fakeStore) catalog() fakeCatalog { return fakeCatalog{fs: fs} }

func (fs *fakeStore) CountOpenByUser(ctx context.Context, userID int64) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.countOpenLocked(userID), nil
}

func (fs *fakeStore) countOpenLocked(userID int64) int64 {
	var n int64
	for _, r := range fs.rentals {
		if r.UserID == userID && !r.Deleted && r.Open() {
			n++
		}
	}
	return n
}

func (fs *fakeStore) CreateReserving(ctx context.Context, r *model.Rental) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.countOpenLocked(r.UserID) > 0 {
		return rrepo.ErrActiveLimit
	}
	p := fs.products[r.ProductID]
	if p == nil || p.Stock < 1 || !p.Available || p.Deleted {
		return rrepo.ErrOutOfStock
	}
	p.Stock--
	p.Available = p.Stock > 0
	fs.nextID++
	r.ID = fs.nextID
	r.Status = model.RentalPending
	cp := *r
	fs.rentals[r.ID] = &cp
	return nil
}

func (fs *fakeStore) ByID(ctx context.Context, id int64) (*model.Rental, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.rentals[id]
	if !ok || r.Deleted {
		return nil, rrepo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (fs *fakeStore) Transition(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.rentals[id]
	if !ok || r.Deleted {
		return rrepo.ErrNotFound
	}
	for _, f := range from {
		if r.Status == f {
			r.Status = to
			return nil
		}
	}
	return rrepo.ErrStatusConflict
}

func (fs *fakeStore) CancelRestoring(ctx context.Context, id, productID int64, updatedBy string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.rentals[id]
	if !ok || r.Deleted {
		return rrepo.ErrNotFound
	}
	if r.Status.Terminal() {
		return rrepo.ErrStatusConflict
	}
	r.Status = model.RentalCancelled
	r.Deleted = true
	if p := fs.products[productID]; p != nil {
		p.Stock++
		p.Available = !p.Deleted
	}
	return nil
}

func (fs *fakeStore) ExtendEnd(ctx context.Context, id int64, extraDays int) (*model.Rental, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.rentals[id]
	if !ok || r.Deleted {
		return nil, rrepo.ErrNotFound
	}
	r.RentalEnd = r.RentalEnd.Add(time.Duration(extraDays) * 24 * time.Hour)
	cp := *r
	return &cp, nil
}

func (fs *fakeStore) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var n int64
	for _, r := range fs.rentals {
		if !r.Deleted && r.Open() && r.RentalEnd.Before(now) {
			r.Status = model.RentalOverdue
			n++
		}
	}
	return n, nil
}

func (fs *fakeStore) ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var rows []HistoryRow
	for _, r := range fs.rentals {
		if r.UserID == userID {
			rows = append(rows, HistoryRow{
				RentalID:    r.ID,
				ProductID:   r.ProductID,
				TotalAmount: r.TotalAmount,
				Status:      string(r.Status),
				RentalStart: r.RentalStart,
				RentalEnd:   r.RentalEnd,
			})
		}
	}
	return rows, nil
}

func (fs *fakeStore) ListByStatus(ctx context.Context, status model.RentalStatus) ([]model.Rental, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []model.Rental
	for _, r := range fs.rentals {
		if !r.Deleted && r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (fs *fakeStore) stock(productID int64) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return int(fs.products[productID].Stock)
}

// Two users contending for a single unit: the booking holds the unit until
// cancelled, then the other user can take it.
func TestBooking_SingleUnitHandoff(t *testing.T) {
	fs := newFakeStore(&model.Product{
		ID: 1, Name: "Drill", Category: "tools",
		PricePerDay: price("10.00"), Stock: 1, Available: true,
	})
	svc := New(fs, fs.catalog(), &mockCart{}, newMockMailer(), testLog())
	ctx := context.Background()

	u1 := &model.User{ID: 1, Email: "u1@example.com", Username: "u1"}
	u2 := &model.User{ID: 2, Email: "u2@example.com", Username: "u2"}

	start, end := period(3)
	r1, err := svc.Create(ctx, u1, 1, start, end)
	require.NoError(t, err)
	require.Equal(t, model.RentalPending, r1.Status)
	require.True(t, r1.TotalAmount.Equal(price("30.00")))
	require.Equal(t, 0, fs.stock(1))

	_, err = svc.Create(ctx, u2, 1, start, end)
	require.Equal(t, ErrNoStock, Code(err))

	require.NoError(t, svc.Cancel(ctx, u1.ID, r1.ID))
	require.Equal(t, 1, fs.stock(1))
	// cancel again: no-op, stock untouched
	require.NoError(t, svc.Cancel(ctx, u1.ID, r1.ID))
	require.Equal(t, 1, fs.stock(1))

	start2, end2 := period(5)
	r2, err := svc.Create(ctx, u2, 1, start2, end2)
	require.NoError(t, err)
	require.True(t, r2.TotalAmount.Equal(price("50.00")))
	require.Equal(t, 0, fs.stock(1))
}

// N+1 concurrent bookings against N units: exactly N succeed and stock never
// goes negative.
func TestBooking_ConcurrentReservations(t *testing.T) {
	const stock = 3
	fs := newFakeStore(&model.Product{
		ID: 1, Name: "Tent", Category: "outdoor",
		PricePerDay: price("15.00"), Stock: stock, Available: true,
	})
	svc := New(fs, fs.catalog(), &mockCart{}, newMockMailer(), testLog())

	start, end := period(2)
	errs := make(chan error, stock+1)
	var wg sync.WaitGroup
	for i := 0; i < stock+1; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			u := &model.User{ID: userID, Email: "x@example.com", Username: "x"}
			_, err := svc.Create(context.Background(), u, 1, start, end)
			errs <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(errs)

	var ok, noStock int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case Code(err) == ErrNoStock:
			noStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, stock, ok)
	require.Equal(t, 1, noStock)
	require.Equal(t, 0, fs.stock(1))
}

func TestBooking_ReturnDoesNotRestock(t *testing.T) {
	fs := newFakeStore(&model.Product{
		ID: 1, Name: "Kayak", Category: "outdoor",
		PricePerDay: price("20.00"), Stock: 1, Available: true,
	})
	svc := New(fs, fs.catalog(), &mockCart{}, newMockMailer(), testLog())
	ctx := context.Background()

	u := &model.User{ID: 1, Email: "u@example.com", Username: "u"}
	start, end := period(2)
	rn, err := svc.Create(ctx, u, 1, start, end)
	require.NoError(t, err)

	require.NoError(t, fs.Transition(ctx, rn.ID, []model.RentalStatus{model.RentalPending}, model.RentalActive, "test"))
	require.NoError(t, svc.Return(ctx, u.ID, rn.ID))

	got, err := svc.ByID(ctx, rn.ID)
	require.NoError(t, err)
	require.Equal(t, model.RentalReturned, got.Status)
	// Relisting is an explicit restock, not a side effect of returning.
	require.Equal(t, 0, fs.stock(1))
}
