// Package mysync provides a mutex that owns the value it guards.
package mysync

import (
	"sync"
)

// Mutex guards a value of type T. The value can only be reached by locking the mutex.
type Mutex[T any] struct {
	mu sync.Mutex
	v  T
}

type MutexUnlock struct {
	mu *sync.Mutex
}

func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{v: v}
}

func (mu *Mutex[T]) Lock() (T, MutexUnlock) {
	mu.mu.Lock()
	return mu.v, MutexUnlock{&mu.mu}
}

// With calls fn with the guarded value while holding the lock.
func (mu *Mutex[T]) With(fn func(v T)) {
	v, u := mu.Lock()
	defer u.Unlock()
	fn(v)
}

func (u MutexUnlock) Unlock() { u.mu.Unlock() }
