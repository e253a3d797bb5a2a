package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/common"
	"github.com/noah-isme/toss-checkout/internal/lock"
)

const testKey = "toss-payment-products"

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newMemoryStore(t *testing.T, now func() time.Time) (*catalog.Store, *catalog.MemoryKV) {
	t.Helper()
	kv := catalog.NewMemoryKV()
	store, err := catalog.NewStore(catalog.StoreConfig{KV: kv, Key: testKey, Now: now})
	require.NoError(t, err)
	return store, kv
}

func TestNewStoreRequiresDependencies(t *testing.T) {
	_, err := catalog.NewStore(catalog.StoreConfig{Key: testKey})
	require.Error(t, err)
	_, err = catalog.NewStore(catalog.StoreConfig{KV: catalog.NewMemoryKV(), Key: "  "})
	require.Error(t, err)
}

func TestStoreCreateAndGet(t *testing.T) {
	store, _ := newMemoryStore(t, fixedClock(1700000000000))
	ctx := context.Background()

	require.Empty(t, store.List(ctx))

	created, err := store.Create(ctx, catalog.ProductFields{Name: " 개발의 신 베이직 ", Price: 10000, Description: "AI 챗봇 일일 10회 이용권 (1개월)"})
	require.NoError(t, err)
	require.Equal(t, "1700000000000", created.ID)
	require.Equal(t, "개발의 신 베이직", created.Name)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestStoreCreateBumpsCollidingID(t *testing.T) {
	store, _ := newMemoryStore(t, fixedClock(42))
	ctx := context.Background()

	first, err := store.Create(ctx, catalog.ProductFields{Name: "a", Price: 1, Description: "a"})
	require.NoError(t, err)
	second, err := store.Create(ctx, catalog.ProductFields{Name: "b", Price: 2, Description: "b"})
	require.NoError(t, err)
	require.Equal(t, "42", first.ID)
	require.Equal(t, "43", second.ID)
	require.Len(t, store.List(ctx), 2)
}

func TestStoreRejectsInvalidPriceWithoutMutation(t *testing.T) {
	store, _ := newMemoryStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Reset(ctx, catalog.DefaultProducts()))

	for _, price := range []int64{0, -100} {
		_, err := store.Create(ctx, catalog.ProductFields{Name: "x", Price: price, Description: "y"})
		require.Error(t, err)
		require.Equal(t, common.KindValidation, common.KindOf(err))
	}
	require.Len(t, store.List(ctx), 3)

	negative := int64(-1)
	_, err := store.Update(ctx, "1", catalog.ProductPatch{Price: &negative})
	require.Error(t, err)
	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.EqualValues(t, 50000, got.Price)
}

func TestStoreValidationMessages(t *testing.T) {
	errs := catalog.ProductFields{Name: "  ", Price: 0, Description: ""}.Validate()
	require.Equal(t, catalog.MsgNameRequired, errs["name"])
	require.Equal(t, catalog.MsgPriceInvalid, errs["price"])
	require.Equal(t, catalog.MsgDescriptionRequired, errs["description"])
}

func TestStoreUpdateIsPartial(t *testing.T) {
	store, _ := newMemoryStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Reset(ctx, catalog.DefaultProducts()))

	price := int64(45000)
	updated, err := store.Update(ctx, "1", catalog.ProductPatch{Price: &price})
	require.NoError(t, err)
	require.Equal(t, "개발의 신 프리미엄", updated.Name)
	require.EqualValues(t, 45000, updated.Price)
	require.Equal(t, "AI 챗봇 무제한 이용권 (1개월)", updated.Description)

	_, err = store.Update(ctx, "nope", catalog.ProductPatch{Price: &price})
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestStoreDeleteRemovesEveryMatch(t *testing.T) {
	store, _ := newMemoryStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Reset(ctx, []catalog.Product{
		{ID: "7", Name: "a", Price: 1, Description: "a"},
		{ID: "8", Name: "b", Price: 2, Description: "b"},
		{ID: "7", Name: "c", Price: 3, Description: "c"},
	}))

	removed, err := store.Delete(ctx, "7")
	require.NoError(t, err)
	require.True(t, removed)
	list := store.List(ctx)
	require.Len(t, list, 1)
	require.Equal(t, "8", list[0].ID)

	removed, err = store.Delete(ctx, "7")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestStoreListDegradesWhenUnavailable(t *testing.T) {
	store, kv := newMemoryStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Reset(ctx, catalog.DefaultProducts()))

	kv.SetUnavailable(true)
	require.Empty(t, store.List(ctx))
	_, err := store.Get(ctx, "1")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = store.Create(ctx, catalog.ProductFields{Name: "a", Price: 1, Description: "b"})
	require.ErrorIs(t, err, catalog.ErrUnavailable)
	require.ErrorIs(t, store.Ping(ctx), catalog.ErrUnavailable)

	kv.SetUnavailable(false)
	require.Len(t, store.List(ctx), 3)
}

func TestStoreCorruptDocumentReadsEmpty(t *testing.T) {
	store, kv := newMemoryStore(t, nil)
	ctx := context.Background()
	require.NoError(t, kv.Save(ctx, testKey, []byte("{not json")))
	require.Empty(t, store.List(ctx))

	_, err := store.Create(ctx, catalog.ProductFields{Name: "a", Price: 1, Description: "b"})
	require.Error(t, err)
	raw, ok, err := kv.Load(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "{not json", string(raw))
}

func TestStoreInitialisesMissingDocument(t *testing.T) {
	store, kv := newMemoryStore(t, nil)
	ctx := context.Background()
	require.Empty(t, store.List(ctx))
	raw, ok, err := kv.Load(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", string(raw))
}

// pausingKV holds the first Load after it has read the backend, until release is closed.
type pausingKV struct {
	*catalog.MemoryKV
	once    sync.Once
	paused  chan struct{}
	release chan struct{}
}

func (k *pausingKV) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := k.MemoryKV.Load(ctx, key)
	first := false
	k.once.Do(func() { first = true })
	if first {
		close(k.paused)
		<-k.release
	}
	return data, ok, err
}

func TestStoreListOfMissingDocumentKeepsConcurrentCreate(t *testing.T) {
	kv := &pausingKV{MemoryKV: catalog.NewMemoryKV(), paused: make(chan struct{}), release: make(chan struct{})}
	store, err := catalog.NewStore(catalog.StoreConfig{KV: kv, Key: testKey, Now: fixedClock(1700000000000)})
	require.NoError(t, err)
	ctx := context.Background()

	listed := make(chan []catalog.Product, 1)
	go func() { listed <- store.List(ctx) }()
	<-kv.paused

	created, err := store.Create(ctx, catalog.ProductFields{Name: "개발의 신 베이직", Price: 10000, Description: "AI 챗봇 일일 30회 이용권 (1개월)"})
	require.NoError(t, err)

	close(kv.release)
	require.Empty(t, <-listed)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)
	require.Len(t, store.List(ctx), 1)
}

func TestStoreSeedOnlyWhenAbsent(t *testing.T) {
	store, _ := newMemoryStore(t, nil)
	ctx := context.Background()

	seeded, err := store.Seed(ctx, catalog.DefaultProducts())
	require.NoError(t, err)
	require.True(t, seeded)
	require.Len(t, store.List(ctx), 3)

	require.NoError(t, store.Reset(ctx, nil))
	seeded, err = store.Seed(ctx, catalog.DefaultProducts())
	require.NoError(t, err)
	require.False(t, seeded)
	require.Empty(t, store.List(ctx))
}

func TestRedisStoreRoundTripWithLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := catalog.NewStore(catalog.StoreConfig{
		KV:      catalog.NewRedisKV(client),
		Key:     testKey,
		Locker:  lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		LockTTL: time.Second,
		Now:     fixedClock(1700000000123),
	})
	require.NoError(t, err)
	ctx := context.Background()

	created, err := store.Create(ctx, catalog.ProductFields{Name: "개발의 신 스탠다드", Price: 30000, Description: "AI 챗봇 일일 100회 이용권 (1개월)"})
	require.NoError(t, err)

	raw, err := mr.Get(testKey)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"1700000000123","name":"개발의 신 스탠다드","price":30000,"description":"AI 챗봇 일일 100회 이용권 (1개월)"}]`, raw)
	require.False(t, mr.Exists(testKey+":lock"))

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)
	require.NoError(t, store.Ping(ctx))

	mr.Close()
	require.Empty(t, store.List(ctx))
}
