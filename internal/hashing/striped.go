package hashing

import (
	"hash/crc32"
	"sync"
)

// Striped hands out one of a fixed set of mutexes per key, so work on the
// same key is serialized while unrelated keys rarely contend.
type Striped struct {
	stripes []sync.Mutex
}

func hash(key string) uint32 {
	return crc32.ChecksumIEEE([]byte(key))
}

func NewStriped(n int) *Striped {
	if n <= 0 {
		n = 1
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

func (s *Striped) stripe(key string) *sync.Mutex {
	return &s.stripes[hash(key)%uint32(len(s.stripes))]
}

// Lock acquires the stripe for key and returns its unlock function.
func (s *Striped) Lock(key string) (unlock func()) {
	mu := s.stripe(key)
	mu.Lock()
	return mu.Unlock
}
