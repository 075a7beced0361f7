package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDs generates predictable version-7 shaped transaction ids:
// 00000000-0000-7000-8000-000000000001, ...0002, and so on.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu sync.Mutex
	n  uint64
}

// NewSequentialIDs creates a generator whose first id ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return TxID(g.n)
}

// TxID returns the id SequentialIDs produces for its n-th call.
func TxID(n uint64) uuid.UUID {
	var id uuid.UUID
	id[6] = 0x70
	id[8] = 0x80
	binary.BigEndian.PutUint64(id[8:], n|0x8000000000000000)
	return id
}
