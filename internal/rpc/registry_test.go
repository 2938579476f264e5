package rpc

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CompleteResolvesWaiter(t *testing.T) {
	r := NewRegistry()
	w := r.Register("corr-1")

	ok := r.Complete("corr-1", []byte(`{"valid":true}`))
	require.True(t, ok)

	out := <-w.Done()
	assert.False(t, out.TimedOut)
	assert.JSONEq(t, `{"valid":true}`, string(out.Payload))
	assert.Equal(t, 0, r.Pending())
}

func TestRegistry_ExpireResolvesWaiter(t *testing.T) {
	r := NewRegistry()
	w := r.Register("corr-1")

	ok := r.Expire("corr-1")
	require.True(t, ok)

	out := <-w.Done()
	assert.True(t, out.TimedOut)
	assert.Nil(t, out.Payload)
	assert.Equal(t, 0, r.Pending())
}

func TestRegistry_CompleteAndExpireAreMutuallyExclusive(t *testing.T) {
	tests := []struct {
		name        string
		first       func(r *Registry) bool
		second      func(r *Registry) bool
		wantTimeout bool
	}{
		{
			name:        "expire after complete is a no-op",
			first:       func(r *Registry) bool { return r.Complete("id", []byte("response")) },
			second:      func(r *Registry) bool { return r.Expire("id") },
			wantTimeout: false,
		},
		{
			name:        "complete after expire is a no-op",
			first:       func(r *Registry) bool { return r.Expire("id") },
			second:      func(r *Registry) bool { return r.Complete("id", []byte("late response")) },
			wantTimeout: true,
		},
		{
			name:        "complete is idempotent",
			first:       func(r *Registry) bool { return r.Complete("id", []byte("response")) },
			second:      func(r *Registry) bool { return r.Complete("id", []byte("duplicate")) },
			wantTimeout: false,
		},
		{
			name:        "expire is idempotent",
			first:       func(r *Registry) bool { return r.Expire("id") },
			second:      func(r *Registry) bool { return r.Expire("id") },
			wantTimeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			w := r.Register("id")

			assert.True(t, tt.first(r), "first resolution must win")
			assert.False(t, tt.second(r), "second resolution must be a no-op")

			out := <-w.Done()
			assert.Equal(t, tt.wantTimeout, out.TimedOut, "loser must not alter the outcome")

			select {
			case extra := <-w.Done():
				t.Fatalf("waiter resolved twice: %+v", extra)
			default:
			}
		})
	}
}

func TestRegistry_UnknownIDIsDropped(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Complete("never-registered", []byte("x")))
	assert.False(t, r.Expire("never-registered"))
}

func TestRegistry_ConcurrentResolutionHasOneWinner(t *testing.T) {
	const ids = 100
	r := NewRegistry()

	waiters := make([]*Waiter, ids)
	for i := 0; i < ids; i++ {
		waiters[i] = r.Register(fmt.Sprintf("corr-%d", i))
	}

	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Delivery and timeout race concurrently on every id.
	for i := 0; i < ids; i++ {
		id := fmt.Sprintf("corr-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if r.Complete(id, []byte("delivered")) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			if r.Expire(id) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(ids), wins, "exactly one resolver must win per id")
	assert.Equal(t, 0, r.Pending())

	for i := 0; i < ids; i++ {
		select {
		case <-waiters[i].Done():
		default:
			t.Fatalf("waiter %d never resolved", i)
		}
	}
}
