// Package channels holds small channel helpers.
package channels

import "context"

// CloseChannelIgnorePanic closes ch, ignoring the panic raised when it is
// already closed. A nil channel is ignored.
func CloseChannelIgnorePanic[T any](ch chan<- T) {
	if ch == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	close(ch)
}

// Unbounded returns a pair of channels connected by an unbounded queue:
// sends on the first never block, and values come out of the second in the
// order they were sent.
//
// The output is closed once the input is closed and drained, or as soon as
// ctx is done (queued values are then dropped). Memory grows with the
// backlog if the receiver falls behind.
func Unbounded[A any](ctx context.Context) (chan<- A, <-chan A) {
	inputCh := make(chan A)
	outputCh := make(chan A)

	go func() {
		defer close(outputCh)

		var queue []A

		for len(queue) > 0 || inputCh != nil {
			// A nil channel disables the send case while the queue is empty.
			var (
				out  chan A
				head A
			)

			if len(queue) > 0 {
				out = outputCh
				head = queue[0]
			}

			select {
			case <-ctx.Done():
				return
			case v, ok := <-inputCh:
				if !ok {
					inputCh = nil

					continue
				}

				queue = append(queue, v)
			case out <- head:
				var zero A

				queue[0] = zero
				queue = queue[1:]
			}
		}
	}()

	return inputCh, outputCh
}
