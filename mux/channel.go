package mux

import (
	"context"
	"sync/atomic"
)

// MessageChannel is a bounded queue with close-once semantics, used to hand
// envelopes from a session's owner to a subscriber's write pump. TrySend and
// TryReceive never block. Callers must serialize TrySend with Close; the
// session owner's lock provides that.
type MessageChannel[T any] struct {
	channel    chan T
	context    context.Context
	bufferSize int
	closed     atomic.Int32
}

func NewMessageChannel[T any](ctx context.Context, bufferSize int) *MessageChannel[T] {
	return &MessageChannel[T]{
		channel:    make(chan T, bufferSize),
		context:    ctx,
		bufferSize: bufferSize,
	}
}

// TrySend queues message without blocking. It reports false when the
// channel is full or closed.
func (mc *MessageChannel[T]) TrySend(message T) bool {
	if mc.IsClosed() {
		return false
	}
	select {
	case mc.channel <- message:
		return true
	default:
		return false
	}
}

// Receive blocks until a message arrives, ctx is cancelled, or the owning
// context ends. After Close it yields any queued messages, then zero values.
func (mc *MessageChannel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case message := <-mc.channel:
		return message, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-mc.context.Done():
		var zero T
		return zero, mc.context.Err()
	}
}

func (mc *MessageChannel[T]) TryReceive() (T, bool) {
	select {
	case message := <-mc.channel:
		return message, true
	default:
		var zero T
		return zero, false
	}
}

func (mc *MessageChannel[T]) Close() {
	if mc.closed.CompareAndSwap(0, 1) {
		close(mc.channel)
	}
}

func (mc *MessageChannel[T]) IsClosed() bool {
	return mc.closed.Load() == 1
}

func (mc *MessageChannel[T]) BufferSize() int {
	return mc.bufferSize
}

func (mc *MessageChannel[T]) QueueLength() int {
	return len(mc.channel)
}
