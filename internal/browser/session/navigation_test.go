package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNavigationQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("DeliversInOrder", func(t *testing.T) {
		q := NewNavigationQueue(4)
		q.Push("https://shop/ap/signin")
		q.Push("https://shop/ap/mfa")

		first, err := q.Next(context.Background())
		require.NoError(t, err)
		second, err := q.Next(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "https://shop/ap/signin", first)
		assert.Equal(t, "https://shop/ap/mfa", second)
		assert.Equal(t, uint64(2), q.Seq())
	})

	t.Run("DropsOldestWhenFull", func(t *testing.T) {
		q := NewNavigationQueue(2)
		q.Push("a")
		q.Push("b")
		q.Push("c")

		first, _ := q.Next(context.Background())
		second, _ := q.Next(context.Background())
		assert.Equal(t, "b", first)
		assert.Equal(t, "c", second)
	})

	t.Run("DrainDiscardsBufferedEvents", func(t *testing.T) {
		q := NewNavigationQueue(4)
		q.Push("a")
		q.Push("b")
		q.Drain()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := q.Next(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, uint64(2), q.Seq(), "draining does not rewind the sequence")
	})

	t.Run("NextUnblocksOnPush", func(t *testing.T) {
		q := NewNavigationQueue(1)
		done := make(chan string)
		go func() {
			url, _ := q.Next(context.Background())
			done <- url
		}()

		q.Push("https://shop/orders")
		select {
		case url := <-done:
			assert.Equal(t, "https://shop/orders", url)
		case <-time.After(time.Second):
			t.Fatal("Next did not observe the navigation")
		}
	})

	t.Run("NextHonorsCancellation", func(t *testing.T) {
		q := NewNavigationQueue(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := q.Next(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
