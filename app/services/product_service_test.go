package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/pkg/cache"
	"github.com/shashiranjanraj/catalog/pkg/testkit"
)

// countingStore counts reads that reach the database.
type countingStore struct {
	*repositories.ProductRepository
	lists atomic.Int32
	finds atomic.Int32
}

func (s *countingStore) ListAll(ctx context.Context) ([]models.Product, error) {
	s.lists.Add(1)
	return s.ProductRepository.ListAll(ctx)
}

func (s *countingStore) FindByID(ctx context.Context, id uint) (models.Product, error) {
	s.finds.Add(1)
	return s.ProductRepository.FindByID(ctx, id)
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) Publish(_ context.Context, name string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, name)
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type fixture struct {
	svc   *services.ProductService
	store *countingStore
	cache *cache.Cache
	bus   *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &countingStore{ProductRepository: repositories.NewProductRepository(testkit.NewDB(t))}
	c := cache.New(cache.Options{MaxEntries: 100})
	t.Cleanup(c.Close)
	bus := &recordingBus{}
	return &fixture{
		svc:   services.NewProductService(store, services.ProductServiceOptions{Cache: c, Events: bus, TTL: time.Minute}),
		store: store,
		cache: c,
		bus:   bus,
	}
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func TestWidgetLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("9.99"), Available: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.ID)
	v1 := created.Version

	got, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, created.Summary().Name, got.Name)
	assert.True(t, got.Version.Equal(v1))

	_, err = f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.store.finds.Load(), "second read is served from cache")

	res, err := f.svc.Update(ctx, "ana", 1, v1, models.ProductFields{Price: ptr(price("12.99"))})
	require.NoError(t, err)
	require.False(t, res.Conflict)
	v2 := res.Record.Version
	assert.False(t, v2.Equal(v1))

	_, ok := f.cache.Get(services.ItemKey(1))
	assert.False(t, ok, "item key invalidated after update")
	_, ok = f.cache.Get(services.KeyAll)
	assert.False(t, ok, "collection key invalidated after update")

	stale, err := f.svc.Update(ctx, "bob", 1, v1, models.ProductFields{Price: ptr(price("1"))})
	require.NoError(t, err)
	require.True(t, stale.Conflict)
	assert.True(t, stale.Record.Version.Equal(v2))
	assert.True(t, stale.Record.Price.Equal(price("12.99")))

	fresh, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, fresh.Version.Equal(stale.Record.Version), "conflict payload matches a fresh read")

	assert.Equal(t, []string{services.EventProductCreated, services.EventProductUpdated}, f.bus.names(),
		"no event is published for a rejected update")
}

func TestReadAfterWriteNeverServesOlderSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err)

	res, err := f.svc.Update(ctx, "ana", p.ID, p.Version, models.ProductFields{Name: ptr("Gizmo")})
	require.NoError(t, err)
	require.False(t, res.Conflict)

	list, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Gizmo", list[0].Name)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gizmo", got.Name)
}

func TestListIsCachedAndCopied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)

	first, err := f.svc.List(ctx)
	require.NoError(t, err)
	first[0].Name = "mutated by caller"

	second, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Widget", second[0].Name)
	assert.EqualValues(t, 1, f.store.lists.Load())
}

func TestDuplicateNameLeavesStoreAndCacheUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("9.99"), Available: true})
	require.NoError(t, err)

	_, err = f.svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.Len())

	_, err = f.svc.Create(ctx, "ana", models.Product{Name: "widget", Price: price("3"), Description: "other"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeAlreadyExists, errors.GetCode(err))

	_, ok := f.cache.Get(services.KeyAll)
	assert.True(t, ok, "a rejected insert does not invalidate")

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetMissingProductIsNotCached(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, ok := f.cache.Get(services.ItemKey(999))
	assert.False(t, ok)
	assert.Equal(t, 0, f.cache.Len())
}

func TestUpdateAndDeleteMissingProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, "ana", 5, models.Version("v"), models.ProductFields{Available: ptr(true)})
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	err = f.svc.Delete(ctx, "ana", 5)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Empty(t, f.bus.names())
}

func TestDeleteInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.svc.List(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "ana", p.ID))
	assert.Equal(t, 0, f.cache.Len())

	_, err = f.svc.Get(ctx, p.ID)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input models.Product
	}{
		{"empty name", models.Product{Name: "   ", Price: price("1")}},
		{"long name", models.Product{Name: string(make([]rune, 256)), Price: price("1")}},
		{"negative price", models.Product{Name: "Widget", Price: price("-0.01")}},
		{"sub-cent price", models.Product{Name: "Widget", Price: price("9.999")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, "ana", tc.input)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}

	p, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("0")})
	require.NoError(t, err, "zero price is allowed")

	_, err = f.svc.Update(ctx, "ana", p.ID, nil, models.ProductFields{Available: ptr(true)})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err), "version is required")

	_, err = f.svc.Update(ctx, "ana", p.ID, p.Version, models.ProductFields{Price: ptr(price("-1"))})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = f.svc.Update(ctx, "ana", p.ID, p.Version, models.ProductFields{Price: ptr(price("1.005"))})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = f.svc.Create(ctx, "ana", models.Product{Name: "Gadget", Price: price("9.990")})
	assert.NoError(t, err, "trailing zeros are within scale")
}

func TestRenameToTakenNameIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)
	g, err := f.svc.Create(ctx, "ana", models.Product{Name: "Gadget", Price: price("1")})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, "ana", g.ID, g.Version, models.ProductFields{Name: ptr("WIDGET")})
	assert.Equal(t, errors.CodeAlreadyExists, errors.GetCode(err))
}

func TestConcurrentUpdatesExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Update(ctx, "racer", p.ID, p.Version, models.ProductFields{Price: ptr(decimal.NewFromInt(int64(i)))})
			if !assert.NoError(t, err) {
				return
			}
			if res.Conflict {
				conflicts.Add(1)
			} else {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 5, conflicts.Load())
}

// failingStore simulates an unreachable database.
type failingStore struct {
	mock.Mock
}

func (m *failingStore) Insert(ctx context.Context, p models.Product) (models.Product, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(models.Product), args.Error(1)
}

func (m *failingStore) FindByID(ctx context.Context, id uint) (models.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Product), args.Error(1)
}

func (m *failingStore) ListAll(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
}

func (m *failingStore) FindByName(ctx context.Context, name string) (models.Product, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(models.Product), args.Error(1)
}

func (m *failingStore) Update(ctx context.Context, id uint, expected models.Version, fields models.ProductFields) (repositories.UpdateResult, error) {
	args := m.Called(ctx, id, expected, fields)
	return args.Get(0).(repositories.UpdateResult), args.Error(1)
}

func (m *failingStore) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func TestStoreFailureIsNotMaskedByCache(t *testing.T) {
	down := errors.New(errors.CodeUnavailable, "store list failed")
	store := &failingStore{}
	store.On("ListAll", mock.Anything).Return(nil, down)
	store.On("FindByID", mock.Anything, uint(1)).Return(models.Product{}, down)

	c := cache.New(cache.Options{})
	defer c.Close()
	svc := services.NewProductService(store, services.ProductServiceOptions{Cache: c})

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))

	_, err = svc.Get(context.Background(), 1)
	assert.Equal(t, errors.CodeUnavailable, errors.GetCode(err))
	assert.Equal(t, 0, c.Len())
	store.AssertExpectations(t)
}

func TestCacheTypeMismatchIsAMiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)

	f.cache.Set(services.KeyAll, "garbage", time.Minute, cache.High)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeletedIDIsRetired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	widget, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, "ana", widget.ID))

	gadget, err := f.svc.Create(ctx, "ana", models.Product{Name: "Gadget", Price: price("2")})
	require.NoError(t, err)
	assert.NotEqual(t, widget.ID, gadget.ID)

	_, err = f.svc.Get(ctx, widget.ID)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestDuplicateNameCarriesExistingID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	widget, err := f.svc.Create(ctx, "ana", models.Product{Name: "Widget", Price: price("1")})
	require.NoError(t, err)
	gadget, err := f.svc.Create(ctx, "ana", models.Product{Name: "Gadget", Price: price("1")})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, "ana", models.Product{Name: " widget ", Price: price("2")})
	require.Error(t, err)
	assert.Equal(t, errors.CodeAlreadyExists, errors.GetCode(err))
	assert.Equal(t, widget.ID, contextOf(t, err)["existing_id"])

	_, err = f.svc.Update(ctx, "ana", gadget.ID, gadget.Version, models.ProductFields{Name: ptr("WIDGET")})
	assert.Equal(t, widget.ID, contextOf(t, err)["existing_id"])

	res, err := f.svc.Update(ctx, "ana", widget.ID, widget.Version, models.ProductFields{Name: ptr("widget")})
	require.NoError(t, err, "a product may keep its own name")
	assert.Equal(t, "widget", res.Record.Name)
}

func contextOf(t *testing.T, err error) map[string]interface{} {
	t.Helper()
	var pe errors.PlatformError
	require.True(t, errors.As(err, &pe), "not a platform error: %v", err)
	return pe.Context()
}
