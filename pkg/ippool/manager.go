package ippool

import (
	"fmt"
	"net/netip"
	"sync"
)

// Manager owns every named pool declared by a scenario's workbook and
// guards them behind a single exclusive lock, matching the
// single-pool-lock concurrency discipline described in the load
// driver's resource model.
type Manager struct {
	mu    sync.Mutex
	pools map[string]*Pool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

// AddPool registers a new named pool with the given CIDR ranges,
// returning an error if any range fails to parse.
func (m *Manager) AddPool(name string, cidrRanges []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool := New(name)
	for _, r := range cidrRanges {
		if err := pool.AddCIDRRange(r); err != nil {
			return fmt.Errorf("pool %q: %w", name, err)
		}
	}
	m.pools[name] = pool
	return nil
}

// HasPool reports whether a pool with the given name is registered.
func (m *Manager) HasPool(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pools[name]
	return ok
}

// PoolIDs returns the registered pool names, in no particular order.
func (m *Manager) PoolIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.pools))
	for id := range m.pools {
		ids = append(ids, id)
	}
	return ids
}

// Allocate allocates an ip from the named pool for (subinstance, subid).
func (m *Manager) Allocate(poolName, subinstance, subid string, resource ResourceType) (netip.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[poolName]
	if !ok {
		return netip.Addr{}, fmt.Errorf("ip pool %q is not registered", poolName)
	}
	return pool.Allocate(subinstance, subid, resource)
}

// Release releases the (subinstance, subid) binding in the named pool.
func (m *Manager) Release(poolName, subinstance, subid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[poolName]
	if !ok {
		return fmt.Errorf("ip pool %q is not registered", poolName)
	}
	return pool.ReleaseBySubid(subinstance, subid)
}

// Stats returns the named pool's current utilization.
func (m *Manager) Stats(poolName string) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[poolName]
	if !ok {
		return Stats{}, fmt.Errorf("ip pool %q is not registered", poolName)
	}
	return pool.StatsSnapshot(), nil
}

// AllStats returns utilization for every registered pool.
func (m *Manager) AllStats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Stats, 0, len(m.pools))
	for _, pool := range m.pools {
		out = append(out, pool.StatsSnapshot())
	}
	return out
}
