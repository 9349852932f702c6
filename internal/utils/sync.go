package utils

import (
	"sync"
)

// OptionalRWMutex is a sync.RWMutex that can be switched off at construction for owners that are
// externally synchronized. The zero value does not lock.
type OptionalRWMutex struct {
	Mutex    sync.RWMutex
	UseMutex bool
}

func (m *OptionalRWMutex) TryLock() bool {
	if m.UseMutex {
		return m.Mutex.TryLock()
	}

	return true
}

func (m *OptionalRWMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalRWMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}

func (m *OptionalRWMutex) RLock() {
	if m.UseMutex {
		m.Mutex.RLock()
	}
}

func (m *OptionalRWMutex) RUnlock() {
	if m.UseMutex {
		m.Mutex.RUnlock()
	}
}

// Locked runs fn with the write lock held
func (m *OptionalRWMutex) Locked(fn func() error) error {
	m.Lock()
	defer m.Unlock()

	return fn()
}

// RLocked runs fn with the read lock held
func (m *OptionalRWMutex) RLocked(fn func()) {
	m.RLock()
	defer m.RUnlock()

	fn()
}
