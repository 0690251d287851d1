package store

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Stream is a long-lived subscription delivering values until it is
// unsubscribed. Delivery keeps only the newest undelivered value, so a slow
// reader always observes the latest state rather than a backlog.
//
// The channel returned by C is closed after Unsubscribe.
type Stream[T any] struct {
	mu      sync.Mutex
	ch      chan T
	done    chan struct{}
	closed  bool
	once    sync.Once
	onClose func()
}

// NewStream returns an open stream. onClose runs once on Unsubscribe.
func NewStream[T any](onClose func()) *Stream[T] {
	return &Stream[T]{
		ch:      make(chan T, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// C returns the delivery channel.
func (s *Stream[T]) C() <-chan T {
	return s.ch
}

// Done is closed once the stream has been unsubscribed.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Send replaces any undelivered value with v. It reports false after Unsubscribe.
func (s *Stream[T]) Send(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
	return true
}

// Unsubscribe releases the stream. Calling it again has no effect.
func (s *Stream[T]) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		close(s.done)
		s.mu.Unlock()

		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Map derives a stream by applying fn to every value of src. Values for
// which fn fails are logged and skipped. Unsubscribing the result
// unsubscribes src, and the result closes when src does.
func Map[A, B any](ctx context.Context, src *Stream[A], logger *zap.Logger, fn func(context.Context, A) (B, error)) *Stream[B] {
	ctx, cancel := context.WithCancel(ctx)
	dst := NewStream[B](func() {
		cancel()
		src.Unsubscribe()
	})

	go func() {
		defer dst.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case a, ok := <-src.C():
				if !ok {
					return
				}
				b, err := fn(ctx, a)
				if err != nil {
					if ctx.Err() == nil && logger != nil {
						logger.Warn("Dropped subscription update", zap.Error(err))
					}
					continue
				}
				dst.Send(b)
			}
		}
	}()

	return dst
}
