package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapbook/salon-booking/internal/intent"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	store := NewMemoryStore(15 * time.Minute)
	ctx := context.Background()

	sess := New("salon-1", "cust-1", "en", intent.Intent{ServiceName: "haircut"}, nil, time.Now())
	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, "salon-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	require.NoError(t, store.Delete(ctx, "salon-1", "cust-1"))
	_, err = store.Get(ctx, "salon-1", "cust-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreExpiredSessionIsGone(t *testing.T) {
	now := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewMemoryStore(15 * time.Minute).WithClock(clock)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, New("salon-1", "cust-1", "en", intent.Intent{}, nil, now)))

	// One second past the TTL: identical to a missing session.
	now = now.Add(15*time.Minute + time.Second)
	_, err := store.Get(ctx, "salon-1", "cust-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreSweepReclaimsExpired(t *testing.T) {
	now := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sess := New("salon-1", fmt.Sprintf("cust-%d", i), "en", intent.Intent{}, nil, now)
		require.NoError(t, store.Put(ctx, sess))
	}
	require.Equal(t, 5, store.Len())

	now = now.Add(2 * time.Minute)
	store.sweep()
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreConcurrentCustomers(t *testing.T) {
	store := NewMemoryStore(15 * time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			customer := fmt.Sprintf("cust-%d", i)
			sess := New("salon-1", customer, "en", intent.Intent{}, nil, time.Now())
			if err := store.Put(ctx, sess); err != nil {
				t.Errorf("put: %v", err)
				return
			}
			got, err := store.Get(ctx, "salon-1", customer)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			if got.CustomerID != customer {
				t.Errorf("cross-customer corruption: got %s want %s", got.CustomerID, customer)
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryStoreOverwriteReplacesPriorSession(t *testing.T) {
	store := NewMemoryStore(15 * time.Minute)
	ctx := context.Background()

	first := New("salon-1", "cust-1", "en", intent.Intent{ServiceName: "haircut"}, nil, time.Now())
	second := New("salon-1", "cust-1", "en", intent.Intent{ServiceName: "color"}, nil, time.Now())
	require.NoError(t, store.Put(ctx, first))
	require.NoError(t, store.Put(ctx, second))

	got, err := store.Get(ctx, "salon-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "a new request overwrites the prior session")
	assert.Equal(t, 1, store.Len())
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, 15*time.Minute)
	ctx := context.Background()

	sess := New("salon-1", "cust-1", "en", intent.Intent{ServiceName: "haircut"}, nil, time.Now().UTC())
	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, "salon-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "haircut", got.Intent.ServiceName)

	require.NoError(t, store.Delete(ctx, "salon-1", "cust-1"))
	_, err = store.Get(ctx, "salon-1", "cust-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, New("salon-1", "cust-1", "en", intent.Intent{}, nil, time.Now())))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "salon-1", "cust-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}
