package live

import (
	"bytes"
	"encoding/json"
	"sync"
)

// SnapshotView keeps the last applied snapshot so consumers can drop duplicates.
type SnapshotView[T any] struct {
	mu      sync.Mutex
	current T
	raw     []byte
	applied bool
}

// Apply stores v and reports whether it differs from the previous snapshot.
// Re-applying an identical snapshot is a no-op.
func (v *SnapshotView[T]) Apply(next T) bool {
	raw, err := json.Marshal(next)
	if err != nil {
		raw = nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.applied && raw != nil && bytes.Equal(raw, v.raw) {
		return false
	}
	v.current = next
	v.raw = raw
	v.applied = true
	return true
}

func (v *SnapshotView[T]) Current() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.applied
}
