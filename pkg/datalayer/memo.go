package datalayer

import (
	"sync"

	"github.com/dukex/shopflow/pkg/datatypes"
)

// Memo caches decompressed values by token for the duration of a run.
type Memo struct {
	mu     sync.RWMutex
	values map[datatypes.Token]any
}

func NewMemo() *Memo {
	return &Memo{values: map[datatypes.Token]any{}}
}

func (m *Memo) Get(tok datatypes.Token) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[tok]

	return v, ok
}

func (m *Memo) Put(tok datatypes.Token, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[tok] = v
}

func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.values)
}

// Clear drops every cached value.
func (m *Memo) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.values)
}
