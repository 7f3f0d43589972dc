// Package store provides in-memory implementations of the persistence
// interfaces, for tests and for running the engine without a database.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/compliance-engine/notify"
	"github.com/warp/compliance-engine/sched"
)

// =============================================================================
// MEMORY STORE - Address book + statistics, merge semantics matching SQLite
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	addresses map[string]notify.ChatAddress // keyed by space id
	snapshots []sched.Snapshot
}

var (
	_ notify.AddressBook    = (*Memory)(nil)
	_ sched.StatisticsStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{addresses: make(map[string]notify.ChatAddress)}
}

// FetchAll returns the stored addresses in stable space-id order.
func (m *Memory) FetchAll(_ context.Context) ([]notify.ChatAddress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]notify.ChatAddress, 0, len(m.addresses))
	for _, a := range m.addresses {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpaceID < out[j].SpaceID })
	return out, nil
}

// PersistBatch merges addresses by space id. An empty incoming email never
// clears a healed record, mirroring the SQLite upsert.
func (m *Memory) PersistBatch(_ context.Context, addresses []notify.ChatAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range addresses {
		if existing, ok := m.addresses[a.SpaceID]; ok && a.Email == "" {
			a.Email = existing.Email
		}
		m.addresses[a.SpaceID] = a
	}
	return nil
}

// AppendSnapshot records a statistics snapshot.
func (m *Memory) AppendSnapshot(_ context.Context, snapshot sched.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

// Snapshots returns a copy of every recorded snapshot, oldest first.
func (m *Memory) Snapshots() []sched.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]sched.Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}
