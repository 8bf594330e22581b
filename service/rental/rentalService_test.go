// service/rental/rentalService_test.go
package rental

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ARUSH-R/rent-and-return/model"
	rrepo "github.com/ARUSH-R/rent-and-return/repository/rental"
)

type mockRepo struct {
	countOpenFn    func(ctx context.Context, userID int64) (int64, error)
	createFn       func(ctx context.Context, r *model.Rental) error
	byIDFn         func(ctx context.Context, id int64) (*model.Rental, error)
	transitionFn   func(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error
	cancelFn       func(ctx context.Context, id, productID int64, updatedBy string) error
	extendFn       func(ctx context.Context, id int64, extraDays int) (*model.Rental, error)
	markOverdueFn  func(ctx context.Context, now time.Time) (int64, error)
	listByUserFn   func(ctx context.Context, userID int64) ([]HistoryRow, error)
	listByStatusFn func(ctx context.Context, status model.RentalStatus) ([]model.Rental, error)
}

var _ Repo = (*mockRepo)(nil)

func (m *mockRepo) CountOpenByUser(ctx context.Context, userID int64) (int64, error) {
	if m.countOpenFn == nil {
		return 0, nil
	}
	return m.countOpenFn(ctx, userID)
}

func (m *mockRepo) CreateReserving(ctx context.Context, r *model.Rental) error {
	if m.createFn == nil {
		r.ID = 1
		r.Status = model.RentalPending
		return nil
	}
	return m.createFn(ctx, r)
}

func (m *mockRepo) ByID(ctx context.Context, id int64) (*model.Rental, error) {
	return m.byIDFn(ctx, id)
}

func (m *mockRepo) Transition(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error {
	return m.transitionFn(ctx, id, from, to, updatedBy)
}

func (m *mockRepo) CancelRestoring(ctx context.Context, id, productID int64, updatedBy string) error {
	return m.cancelFn(ctx, id, productID, updatedBy)
}

func (m *mockRepo) ExtendEnd(ctx context.Context, id int64, extraDays int) (*model.Rental, error) {
	return m.extendFn(ctx, id, extraDays)
}

func (m *mockRepo) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	return m.markOverdueFn(ctx, now)
}

func (m *mockRepo) ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error) {
	return m.listByUserFn(ctx, userID)
}

func (m *mockRepo) ListByStatus(ctx context.Context, status model.RentalStatus) ([]model.Rental, error) {
	return m.listByStatusFn(ctx, status)
}

type mockProducts struct {
	byIDFn func(ctx context.Context, id int64) (*model.Product, error)
}

func (m *mockProducts) ByID(ctx context.Context, id int64) (*model.Product, error) {
	return m.byIDFn(ctx, id)
}

type mockCart struct {
	mu      sync.Mutex
	cleared []int64
}

func (m *mockCart) Clear(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, userID)
	return 1, nil
}

type mockMailer struct{ sent chan string }

func newMockMailer() *mockMailer { return &mockMailer{sent: make(chan string, 8)} }

func (m *mockMailer) Send(to, subject, body string) error {
	m.sent <- subject
	return nil
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func rentableProduct(id int64, perDay string) *model.Product {
	return &model.Product{ID: id, Name: "Camera", Category: "electronics",
		PricePerDay: price(perDay), Stock: 1, Available: true}
}

func testUser() *model.User {
	return &model.User{ID: 7, Email: "u1@example.com", Username: "u1"}
}

func period(days int) (time.Time, time.Time) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return start, start.Add(time.Duration(days) * 24 * time.Hour)
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	var got *model.Rental
	m := &mockRepo{
		createFn: func(ctx context.Context, r *model.Rental) error {
			r.ID = 11
			r.Status = model.RentalPending
			got = r
			return nil
		},
	}
	pm := &mockProducts{byIDFn: func(ctx context.Context, id int64) (*model.Product, error) {
		return rentableProduct(id, "10.00"), nil
	}}
	cart := &mockCart{}
	mailer := newMockMailer()
	svc := New(m, pm, cart, mailer, testLog())

	start, end := period(3)
	rn, err := svc.Create(context.Background(), testUser(), 5, start, end)
	require.NoError(t, err)
	require.Equal(t, int64(11), rn.ID)
	require.Equal(t, model.RentalPending, rn.Status)
	require.True(t, got.TotalAmount.Equal(price("30.00")), "total = %s", got.TotalAmount)

	require.Eventually(t, func() bool {
		cart.mu.Lock()
		defer cart.mu.Unlock()
		return len(cart.cleared) == 1 && cart.cleared[0] == int64(7)
	}, time.Second, 5*time.Millisecond)
	select {
	case subj := <-mailer.sent:
		require.Contains(t, subj, "Rental Confirmation")
	case <-time.After(time.Second):
		t.Fatal("expected confirmation mail")
	}
}

func TestCreate_ActiveRentalLimit(t *testing.T) {
	m := &mockRepo{
		countOpenFn: func(ctx context.Context, userID int64) (int64, error) { return 1, nil },
	}
	pm := &mockProducts{byIDFn: func(ctx context.Context, id int64) (*model.Product, error) {
		t.Fatal("must not reach product lookup")
		return nil, nil
	}}
	svc := New(m, pm, &mockCart{}, newMockMailer(), testLog())

	start, end := period(3)
	_, err := svc.Create(context.Background(), testUser(), 5, start, end)
	require.Equal(t, ErrActiveRental, Code(err))
}

func TestCreate_ActiveRentalLimit_RaceMappedFromInsert(t *testing.T) {
	m := &mockRepo{
		createFn: func(ctx context.Context, r *model.Rental) error { return rrepo.ErrActiveLimit },
	}
	pm := &mockProducts{byIDFn: func(ctx context.Context, id int64) (*model.Product, error) {
		return rentableProduct(id, "10.00"), nil
	}}
	svc := New(m, pm, &mockCart{}, newMockMailer(), testLog())

	start, end := period(3)
	_, err := svc.Create(context.Background(), testUser(), 5, start, end)
	require.Equal(t, ErrActiveRental, Code(err))
}

func TestCreate_ProductUnavailable(t *testing.T) {
	pm := &mockProducts{byIDFn: func(ctx context.Context, id int64) (*model.Product, error) {
		p := rentableProduct(id, "10.00")
		p.Stock = 0
		p.Available = false
		return p, nil
	}}
	svc := New(&mockRepo{}, pm, &mockCart{}, newMockMailer(), testLog())

	start, end := period(3)
	_, err := svc.Create(context.Background(), testUser(), 5, start, end)
	require.Equal(t, ErrProductUnavailable, Code(err))
}

func TestCreate_PeriodBoundaries(t *testing.T) {
	pm := &mockProducts{byIDFn: func(ctx context.Context, id int64) (*model.Product, error) {
		return rentableProduct(id, "10.00"), nil
	}}

	for _, days := range []int{0, 31, -1} {
		svc := New(&mockRepo{createFn: func(ctx context.Context, r *model.Rental) error {
			t.Fatalf("no rental may be created for %d days", days)
			return nil
		}}, pm, &mockCart{}, newMockMailer(), testLog())
		start, end := period(days)
		_, err := svc.Create(context.Background(), testUser(), 5, start, end)
		require.Equalf(t, ErrBadPeriod, Code(err), "days=%d", days)
	}

	for _, days := range []int{1, 30} {
		svc := New(&mockRepo{}, pm, &mockCart{}, newMockMailer(), testLog())
		start, end := period(days)
		rn, err := svc.Create(context.Background(), testUser(), 5, start, end)
		require.NoErrorf(t, err, "days=%d", days)
		require.True(t, rn.TotalAmount.Equal(price("10.00").Mul(decimal.NewFromInt(int64(days)))))
	}
}

func TestCreate_OutOfStockAborts(t *testing.T) {
	m := &mockRepo{
		createFn: func(ctx context.Context, r *model.Rental) error { return rrepo.ErrOutOfStock },
	}
	pm := &mockProducts{byIDFn: func(ctx context.Context, id int64) (*model.Product, error) {
		return rentableProduct(id, "10.00"), nil
	}}
	cart := &mockCart{}
	mailer := newMockMailer()
	svc := New(m, pm, cart, mailer, testLog())

	start, end := period(3)
	_, err := svc.Create(context.Background(), testUser(), 5, start, end)
	require.Equal(t, ErrNoStock, Code(err))

	// Nothing after the failed reservation may run.
	cart.mu.Lock()
	require.Empty(t, cart.cleared)
	cart.mu.Unlock()
	select {
	case <-mailer.sent:
		t.Fatal("no mail on failed booking")
	case <-time.After(20 * time.Millisecond):
	}
}

// --- Return / Cancel / Extend ---

func TestReturn_FromActiveAndOverdue(t *testing.T) {
	for _, st := range []model.RentalStatus{model.RentalActive, model.RentalOverdue} {
		var toWanted model.RentalStatus
		m := &mockRepo{
			byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
				return &model.Rental{ID: id, UserID: 7, ProductID: 5, Status: st}, nil
			},
			transitionFn: func(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error {
				toWanted = to
				return nil
			},
		}
		svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
		require.NoErrorf(t, svc.Return(context.Background(), 7, 11), "from=%s", st)
		require.Equal(t, model.RentalReturned, toWanted)
	}
}

func TestReturn_PendingRejected(t *testing.T) {
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			return &model.Rental{ID: id, UserID: 7, Status: model.RentalPending}, nil
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
	require.Equal(t, ErrInvalidState, Code(svc.Return(context.Background(), 7, 11)))
}

func TestReturn_AlreadyReturnedConcurrently(t *testing.T) {
	calls := 0
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			calls++
			if calls == 1 {
				return &model.Rental{ID: id, UserID: 7, Status: model.RentalActive}, nil
			}
			return &model.Rental{ID: id, UserID: 7, Status: model.RentalReturned}, nil
		},
		transitionFn: func(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error {
			return rrepo.ErrStatusConflict
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
	require.NoError(t, svc.Return(context.Background(), 7, 11))
}

func TestReturn_NotOwner(t *testing.T) {
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			return &model.Rental{ID: id, UserID: 99, Status: model.RentalActive}, nil
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
	require.Equal(t, ErrNotOwner, Code(svc.Return(context.Background(), 7, 11)))
}

func TestCancel_RestoresAndSoftDeletes(t *testing.T) {
	var cancelledID, restoredProduct int64
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			return &model.Rental{ID: id, UserID: 7, ProductID: 5, Status: model.RentalPending}, nil
		},
		cancelFn: func(ctx context.Context, id, productID int64, updatedBy string) error {
			cancelledID, restoredProduct = id, productID
			return nil
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
	require.NoError(t, svc.Cancel(context.Background(), 7, 11))
	require.Equal(t, int64(11), cancelledID)
	require.Equal(t, int64(5), restoredProduct)
}

func TestCancel_Idempotent(t *testing.T) {
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			// Cancelled rentals are soft-deleted, so lookups miss.
			return nil, rrepo.ErrNotFound
		},
		cancelFn: func(ctx context.Context, id, productID int64, updatedBy string) error {
			t.Fatal("no second cancel write")
			return nil
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
	require.NoError(t, svc.Cancel(context.Background(), 7, 11))
}

func TestCancel_ReturnedRejected(t *testing.T) {
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			return &model.Rental{ID: id, UserID: 7, Status: model.RentalReturned}, nil
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
	require.Equal(t, ErrInvalidState, Code(svc.Cancel(context.Background(), 7, 11)))
}

func TestExtend_AddsDaysWithoutCapCheck(t *testing.T) {
	start, end := period(28)
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			return &model.Rental{ID: id, UserID: 7, Status: model.RentalActive,
				RentalStart: start, RentalEnd: end}, nil
		},
		extendFn: func(ctx context.Context, id int64, extraDays int) (*model.Rental, error) {
			return &model.Rental{ID: id, UserID: 7, Status: model.RentalActive,
				RentalStart: start, RentalEnd: end.Add(time.Duration(extraDays) * 24 * time.Hour)}, nil
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())

	// 28 + 10 days crosses the booking cap; extension is applied anyway.
	rn, err := svc.Extend(context.Background(), 7, 11, 10)
	require.NoError(t, err)
	require.Equal(t, int64(38), model.RentalDays(rn.RentalStart, rn.RentalEnd))
}

func TestExtend_TerminalRejected(t *testing.T) {
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.Rental, error) {
			return &model.Rental{ID: id, UserID: 7, Status: model.RentalReturned}, nil
		},
	}
	svc := New(m, &mockProducts{}, &mockCart{}, newMockMailer(), testLog())
	_, err := svc.Extend(context.Background(), 7, 11, 3)
	require.Equal(t, ErrInvalidState, Code(err))
}
