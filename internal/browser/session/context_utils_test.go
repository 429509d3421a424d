// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

func TestCombineContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), key, "cdp")
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		assert.Equal(t, "cdp", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		cancel1()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondary", func(t *testing.T) {
		ctx2, cancel2 := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), ctx2)
		defer cancel()

		cancel2()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("DeadlineFromPrimary", func(t *testing.T) {
		deadline := time.Now().Add(time.Hour)
		ctx1, cancel1 := context.WithDeadline(context.Background(), deadline)
		defer cancel1()

		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.True(t, got.Equal(deadline))
	})

	t.Run("ExplicitCancellation", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	parent, cancelParent := context.WithTimeout(context.WithValue(context.Background(), key, "cdp"), time.Hour)
	detached := Detach(parent)
	cancelParent()

	assert.ErrorIs(t, parent.Err(), context.Canceled)
	assert.NoError(t, detached.Err(), "detached context ignores parent cancellation")
	assert.Equal(t, "cdp", detached.Value(key))
	_, ok := detached.Deadline()
	assert.False(t, ok, "detached context drops the parent deadline")
}

func TestWithBound(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		err := WithBound(context.Background(), time.Second, "wait for load", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("BoundExpiresWrapsErrTimeout", func(t *testing.T) {
		err := WithBound(context.Background(), 10*time.Millisecond, "wait for load", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrTimeout)
		assert.Contains(t, err.Error(), "wait for load after 10ms")
	})

	t.Run("ParentCancellationIsNotATimeout", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		cancel()

		err := WithBound(parent, time.Second, "wait for load", func(ctx context.Context) error {
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, schemas.ErrTimeout)
	})

	t.Run("OtherErrorsPassThrough", func(t *testing.T) {
		boom := errors.New("target crashed")
		err := WithBound(context.Background(), time.Second, "wait for load", func(context.Context) error { return boom })
		assert.Same(t, boom, err)
	})
}
