package vfile

import "sync"

// List is an externally managed, push-appendable list. Subscribers are told
// about every later push, in push order.
type List[T any] struct {
	mu          sync.Mutex
	items       []T
	subscribers []func(items ...T)
}

func NewList[T any](items ...T) *List[T] {
	return &List[T]{items: items}
}

// Push appends items and notifies subscribers. It returns the new length.
func (l *List[T]) Push(items ...T) int {
	l.mu.Lock()
	l.items = append(l.items, items...)
	n := len(l.items)
	subs := append([]func(items ...T){}, l.subscribers...)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(items...)
	}

	return n
}

func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]T(nil), l.items...)
}

func (l *List[T]) Subscribe(fn func(items ...T)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.subscribers = append(l.subscribers, fn)
}
