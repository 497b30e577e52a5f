//go:build llimpl

package store

import "sync"

//llimpl:impl Store prompt="guard the map with the mutex"
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *Memory) Get(key string) (string, bool)

func (m *Memory) Put(key, value string)

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
