// Package events is a small typed in-process publish/subscribe bus.
package events

import (
	"log/slog"
	"reflect"
	"sync"
)

type subscriber struct {
	id int
	fn func(any)
}

type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[reflect.Type][]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: map[reflect.Type][]subscriber{}}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers fn for events of type T and returns a function that removes it.
func Subscribe[T any](b *Bus, fn func(T)) func() {
	key := typeOf[T]()
	wrapped := func(v any) {
		if ev, ok := v.(T); ok {
			fn(ev)
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[key] = append(b.subs[key], subscriber{id: id, fn: wrapped})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ss := b.subs[key]
		for i, s := range ss {
			if s.id == id {
				b.subs[key] = append(ss[:i:i], ss[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev synchronously to every subscriber of its type. A
// panicking subscriber is logged and does not affect the others.
func Publish[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	key := typeOf[T]()
	b.mu.RLock()
	ss := append([]subscriber(nil), b.subs[key]...)
	b.mu.RUnlock()

	for _, s := range ss {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("events: subscriber panic", "event", key.String(), "panic", r)
				}
			}()
			s.fn(ev)
		}()
	}
}
