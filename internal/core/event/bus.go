package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during a tick land in
// the back buffer; Dispatch swaps buffers and delivers them, so an event is
// never delivered while the tick phase that raised it is still running.
// Emit and Dispatch are called from the game loop only.
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	front    []queued
	back     []queued
	handlers map[reflect.Type][]func(any)
}

type queued struct {
	t  reflect.Type
	ev any
}

func NewBus() *Bus {
	return &Bus{
		front:    make([]queued, 0, 256),
		back:     make([]queued, 0, 256),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event for the next Dispatch. Events keep emission order.
func Emit[T any](b *Bus, ev T) {
	b.back = append(b.back, queued{t: typeOf[T](), ev: ev})
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// Dispatch swaps the buffers and delivers every pending event, in emission
// order, to its subscribers. Events emitted by handlers during delivery are
// held for the following Dispatch.
func (b *Bus) Dispatch() int {
	b.front, b.back = b.back, b.front[:0]

	b.mu.Lock()
	handlers := b.handlers
	b.mu.Unlock()

	for _, q := range b.front {
		for _, h := range handlers[q.t] {
			h(q.ev)
		}
	}
	n := len(b.front)
	clear(b.front)
	b.front = b.front[:0]
	return n
}

// Pending reports how many events wait for the next Dispatch.
func (b *Bus) Pending() int {
	return len(b.back)
}
