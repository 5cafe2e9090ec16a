package coupon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mu      sync.Mutex
	coupons map[int64]*Coupon
	nextID  int64
	err     error

	candidatesAt time.Time
}

func newMockRepo(coupons ...*Coupon) *mockRepo {
	m := &mockRepo{coupons: map[int64]*Coupon{}, nextID: 100}
	for _, c := range coupons {
		m.coupons[c.ID] = c
	}
	return m
}

func (m *mockRepo) FindActiveCandidates(_ context.Context, now time.Time) ([]Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.candidatesAt = now
	var out []Coupon
	for _, c := range m.coupons {
		if c.Active && !now.Before(c.StartDate) && !now.After(c.EndDate) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepo) FindByID(_ context.Context, id int64) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, &CouponNotFoundError{ID: id}
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, c *Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, c *Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coupons[id]; !ok {
		return &CouponNotFoundError{ID: id}
	}
	delete(m.coupons, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) (*Page, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &Page{Page: f.Page, Size: f.Size}, nil
}

func (m *mockRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if strings.EqualFold(c.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) UpsertByCode(ctx context.Context, c *Coupon) error {
	m.mu.Lock()
	for id, existing := range m.coupons {
		if existing.Code == c.Code {
			c.ID = id
			c.CurrentUsage = existing.CurrentUsage
			m.mu.Unlock()
			return m.Update(ctx, c)
		}
	}
	m.mu.Unlock()
	return m.Create(ctx, c)
}

type mockUsage struct {
	counts    map[int64]int
	countErr  error
	recordErr error

	queried  []int64
	recorded []Usage
}

func (m *mockUsage) CountByUser(_ context.Context, _ int64, couponIDs []int64) (map[int64]int, error) {
	m.queried = append(m.queried, couponIDs...)
	if m.countErr != nil {
		return nil, m.countErr
	}
	out := map[int64]int{}
	for _, id := range couponIDs {
		out[id] = m.counts[id]
	}
	return out, nil
}

func (m *mockUsage) Record(_ context.Context, u Usage) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, u)
	return nil
}

type mockPublisher struct {
	events []AppliedEvent
	err    error
}

func (m *mockPublisher) PublishApplied(_ context.Context, e AppliedEvent) error {
	m.events = append(m.events, e)
	return m.err
}

func newTestService(t *testing.T, repo *mockRepo, usage *mockUsage, pub *mockPublisher) *Service {
	t.Helper()
	s, err := NewService(repo, usage, pub)
	require.NoError(t, err)
	s.engine = testEngine()
	return s
}

func int64Ptr(v int64) *int64 { return &v }

func TestService_ListApplicable(t *testing.T) {
	capped := withID(testCoupon(&CartWiseRule{MinCartAmount: d("1")}, DiscountPercentage, "50"), 1, "ONCE")
	capped.MaxUsagePerUser = intPtr(1)
	open := withID(testCoupon(&ProductWiseRule{ProductIDs: NewProductSet(2)}, DiscountFixedAmount, "5"), 2, "SOCKS5")

	tests := []struct {
		name      string
		userID    *int64
		wantCodes []string
		wantQuery []int64
	}{
		{
			name:      "anonymous cart",
			wantCodes: []string{"ONCE", "SOCKS5"},
		},
		{
			name:      "user at cap",
			userID:    int64Ptr(42),
			wantCodes: []string{"SOCKS5"},
			wantQuery: []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(capped, open)
			usage := &mockUsage{counts: map[int64]int{1: 1}}
			s := newTestService(t, repo, usage, &mockPublisher{})

			res, err := s.ListApplicable(context.Background(), CartRequest{UserID: tt.userID, Lines: testCart()})
			require.NoError(t, err)

			var codes []string
			for _, ev := range res.Coupons {
				codes = append(codes, ev.Code)
			}
			assert.ElementsMatch(t, tt.wantCodes, codes)
			assert.Equal(t, tt.wantQuery, usage.queried)
			assert.Equal(t, testNow, repo.candidatesAt)
		})
	}
}

func TestService_ListApplicable_Errors(t *testing.T) {
	t.Run("invalid cart skips storage", func(t *testing.T) {
		repo := newMockRepo()
		s := newTestService(t, repo, &mockUsage{}, &mockPublisher{})

		_, err := s.ListApplicable(context.Background(), CartRequest{})
		var cartErr *InvalidCartError
		require.ErrorAs(t, err, &cartErr)
		assert.True(t, repo.candidatesAt.IsZero())
	})
	t.Run("storage failure", func(t *testing.T) {
		repo := newMockRepo()
		repo.err = errors.New("connection refused")
		s := newTestService(t, repo, &mockUsage{}, &mockPublisher{})

		_, err := s.ListApplicable(context.Background(), CartRequest{Lines: testCart()})
		require.ErrorContains(t, err, "find candidates")
	})
}

func TestService_Apply(t *testing.T) {
	c := withID(testCoupon(&CartWiseRule{MinCartAmount: d("100")}, DiscountPercentage, "10"), 3, "CART10")
	repo := newMockRepo(c)
	usage := &mockUsage{}
	pub := &mockPublisher{}
	s := newTestService(t, repo, usage, pub)

	res, err := s.Apply(context.Background(), 3, CartRequest{UserID: int64Ptr(7), Lines: testCart()})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.CartID, "cart-"), res.CartID)
	assertDecimal(t, d("20"), res.DiscountApplied)
	assertDecimal(t, d("180"), res.FinalTotal)

	require.Len(t, usage.recorded, 1)
	u := usage.recorded[0]
	assert.Equal(t, int64(3), u.CouponID)
	assert.Equal(t, int64Ptr(7), u.UserID)
	assert.Equal(t, res.CartID, u.CartID)
	assertDecimal(t, d("20"), u.DiscountAmount)
	assert.Equal(t, testNow, u.UsedAt)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, "CART10", e.CouponCode)
	assert.Equal(t, TypeCartWise, e.CouponType)
	assert.Equal(t, res.CartID, e.CartID)
	assertDecimal(t, d("180"), e.FinalTotal)
	assert.Empty(t, usage.queried, "coupon without per user cap needs no usage lookup")
}

func TestService_Apply_Errors(t *testing.T) {
	base := func() *Coupon {
		return withID(testCoupon(&CartWiseRule{MinCartAmount: d("100")}, DiscountPercentage, "10"), 3, "CART10")
	}

	tests := []struct {
		name      string
		couponID  int64
		coupon    *Coupon
		usage     *mockUsage
		lines     []Line
		check     func(t *testing.T, err error)
		noRecords bool
	}{
		{
			name:     "not found",
			couponID: 99,
			coupon:   base(),
			usage:    &mockUsage{},
			lines:    testCart(),
			check: func(t *testing.T, err error) {
				var notFound *CouponNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, int64(99), notFound.ID)
			},
		},
		{
			name:     "not applicable",
			couponID: 3,
			coupon:   base(),
			usage:    &mockUsage{},
			lines:    []Line{{ProductID: 1, Quantity: 1, UnitPrice: d("1")}},
			check: func(t *testing.T, err error) {
				var notApplicable *CouponNotApplicableError
				require.ErrorAs(t, err, &notApplicable)
				assert.Equal(t, int64(3), notApplicable.CouponID)
			},
		},
		{
			name:     "cap exhausted concurrently",
			couponID: 3,
			coupon:   base(),
			usage:    &mockUsage{recordErr: &InvalidCouponError{Reason: "coupon usage limit exceeded"}},
			lines:    testCart(),
			check: func(t *testing.T, err error) {
				var invalid *InvalidCouponError
				require.ErrorAs(t, err, &invalid)
				assert.EqualError(t, err, "coupon usage limit exceeded")
			},
		},
		{
			name:     "storage failure while recording",
			couponID: 3,
			coupon:   base(),
			usage:    &mockUsage{recordErr: errors.New("deadlock detected")},
			lines:    testCart(),
			check: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "record usage")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			s := newTestService(t, newMockRepo(tt.coupon), tt.usage, pub)

			res, err := s.Apply(context.Background(), tt.couponID, CartRequest{Lines: tt.lines})
			require.Error(t, err)
			assert.Nil(t, res)
			tt.check(t, err)
			assert.Empty(t, pub.events)
		})
	}
}

func TestService_Apply_PublishFailureDoesNotFail(t *testing.T) {
	c := withID(testCoupon(&CartWiseRule{MinCartAmount: d("1")}, DiscountFixedAmount, "5"), 3, "FIVE")
	usage := &mockUsage{}
	pub := &mockPublisher{err: errors.New("broker down")}
	s := newTestService(t, newMockRepo(c), usage, pub)

	res, err := s.Apply(context.Background(), 3, CartRequest{Lines: testCart()})
	require.NoError(t, err)
	assertDecimal(t, d("5"), res.DiscountApplied)
	assert.Len(t, usage.recorded, 1)
	assert.Len(t, pub.events, 1)
}

func TestService_Apply_PerUserCap(t *testing.T) {
	c := withID(testCoupon(&CartWiseRule{MinCartAmount: d("1")}, DiscountFixedAmount, "5"), 3, "FIVE")
	c.MaxUsagePerUser = intPtr(2)
	usage := &mockUsage{counts: map[int64]int{3: 2}}
	s := newTestService(t, newMockRepo(c), usage, &mockPublisher{})

	_, err := s.Apply(context.Background(), 3, CartRequest{UserID: int64Ptr(1), Lines: testCart()})
	assert.EqualError(t, err, "user has exceeded the usage limit for this coupon")
	assert.Equal(t, []int64{3}, usage.queried)

	_, err = s.Apply(context.Background(), 3, CartRequest{Lines: testCart()})
	require.NoError(t, err)
}
