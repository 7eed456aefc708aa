package payroll

import "sync"

// keyedMutex serializes writers per salary id. Adjustments are
// read-modify-write sequences; without per-key serialization two
// concurrent adjustments to the same salary could interleave and drop
// one update. Lock granularity is one salary, so unrelated salaries
// do not contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
