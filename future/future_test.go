package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ferrors "github.com/amp-labs/amp-dispatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func TestNew_Success(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Success(42)
	}()

	result, err := fut.Await()

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.True(t, fut.IsDone())
}

func TestNew_Failure(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Failure(errTest)
	}()

	result, err := fut.Await()

	require.ErrorIs(t, err, errTest)
	assert.Zero(t, result)
}

func TestPromise_OnlyFirstFulfillmentWins(t *testing.T) {
	t.Parallel()

	fut, promise := New[string]()

	assert.True(t, promise.Success("first"))
	assert.False(t, promise.Success("second"))
	assert.False(t, promise.Failure(errTest))
	assert.Same(t, fut, promise.Future())

	result, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, "first", result)
}

func TestPromise_Complete(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()
	promise.Complete(7, errTest)

	_, err := fut.Await()
	require.ErrorIs(t, err, errTest)
}

func TestPromise_ConcurrentFulfillment(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if promise.Success(i) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, wins)

	_, err := fut.Await()
	require.NoError(t, err)
}

func TestAwaitContext(t *testing.T) {
	t.Parallel()

	t.Run("completes", func(t *testing.T) {
		t.Parallel()

		val, err := Resolved(3).AwaitContext(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 3, val)
	})

	t.Run("gives up on cancel", func(t *testing.T) {
		t.Parallel()

		fut, _ := New[int]()

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		_, err := fut.AwaitContext(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, fut.IsDone())
	})
}

func TestCallbacks(t *testing.T) {
	t.Parallel()

	t.Run("registered before completion", func(t *testing.T) {
		t.Parallel()

		fut, promise := New[int]()
		got := make(chan int, 1)

		fut.OnSuccess(func(v int) { got <- v })
		fut.OnError(func(error) { t.Error("OnError must not fire on success") })

		promise.Success(5)

		select {
		case v := <-got:
			assert.Equal(t, 5, v)
		case <-time.After(time.Second):
			t.Fatal("callback not invoked")
		}
	})

	t.Run("registered after completion", func(t *testing.T) {
		t.Parallel()

		fut := Failed[int](errTest)
		got := make(chan error, 1)

		fut.OnError(func(err error) { got <- err })

		select {
		case err := <-got:
			require.ErrorIs(t, err, errTest)
		case <-time.After(time.Second):
			t.Fatal("callback not invoked")
		}
	})

	t.Run("panicking callback does not break others", func(t *testing.T) {
		t.Parallel()

		fut, promise := New[int]()
		got := make(chan Result[int], 1)

		fut.OnResult(func(Result[int]) { panic("boom") })
		fut.OnResult(func(r Result[int]) { got <- r })

		promise.Success(1)

		select {
		case r := <-got:
			assert.Equal(t, 1, r.Value)
		case <-time.After(time.Second):
			t.Fatal("callback not invoked")
		}
	})
}

func TestGo(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		val, err := Go(func() (int, error) { return 42, nil }).Await()
		require.NoError(t, err)
		assert.Equal(t, 42, val)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		t.Parallel()

		_, err := Go(func() (int, error) { panic(errTest) }).Await()
		require.ErrorIs(t, err, ferrors.ErrPanicRecovery)
		require.ErrorIs(t, err, errTest)
	})

	t.Run("already cancelled context skips fn", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		ran := false

		_, err := GoContext(ctx, func(context.Context) (int, error) {
			ran = true

			return 1, nil
		}).Await()

		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, ran)
	})
}
