package ippool

import (
	"net/netip"
	"time"
)

// Binding is the association between an allocated IP and the tuple
// (tenant/subinstance, subid, resource type).
type Binding struct {
	IP          netip.Addr
	Subinstance string
	Subid       string
	Resource    ResourceType
	AllocatedAt time.Time
	Metadata    map[string]string
}

// Stats summarizes a pool's utilization at a point in time.
type Stats struct {
	Name      string
	Total     int
	Allocated int
	Reserved  int
	Available int
}

// subKey uniquely identifies a (subinstance, subid) pair.
type subKey struct {
	subinstance string
	subid       string
}

// Pool is a named collection of IP ranges with exclusive, indexed
// bindings. It is not safe for concurrent use without external
// synchronization — callers (the load driver) guard it with a single
// exclusive lock per spec.
type Pool struct {
	Name   string
	ranges []IPRange

	allocated map[netip.Addr]*Binding
	reserved  map[netip.Addr]struct{}

	bySubinstance map[string][]netip.Addr
	bySub         map[subKey]netip.Addr
	byResource    map[string]netip.Addr
}

// New creates an empty, named pool.
func New(name string) *Pool {
	return &Pool{
		Name:          name,
		allocated:     make(map[netip.Addr]*Binding),
		reserved:      make(map[netip.Addr]struct{}),
		bySubinstance: make(map[string][]netip.Addr),
		bySub:         make(map[subKey]netip.Addr),
		byResource:    make(map[string]netip.Addr),
	}
}

// AddRange appends an explicit range to the pool, in insertion order.
func (p *Pool) AddRange(start, end netip.Addr) error {
	r, err := NewRange(start, end)
	if err != nil {
		return err
	}
	p.ranges = append(p.ranges, r)
	return nil
}

// AddCIDRRange parses and appends a CIDR range to the pool.
func (p *Pool) AddCIDRRange(cidr string) error {
	r, err := NewRangeFromCIDR(cidr)
	if err != nil {
		return err
	}
	p.ranges = append(p.ranges, r)
	return nil
}

// Reserve marks an ip as reserved, excluding it from allocation without
// creating a binding.
func (p *Pool) Reserve(addr netip.Addr) error {
	if !p.inAnyRange(addr) {
		return newErr(IPNotFound, "%s is not within any configured range", addr)
	}
	p.reserved[addr] = struct{}{}
	return nil
}

// Unreserve clears a reservation.
func (p *Pool) Unreserve(addr netip.Addr) {
	delete(p.reserved, addr)
}

func (p *Pool) inAnyRange(addr netip.Addr) bool {
	for _, r := range p.ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// Allocate returns the ip bound to (subinstance, subid), allocating a
// fresh one from the first available range/address in insertion order
// if none exists yet. Idempotent: a repeat call with the same
// (subinstance, subid) returns the same ip without mutating state.
func (p *Pool) Allocate(subinstance, subid string, resource ResourceType) (netip.Addr, error) {
	key := subKey{subinstance: subinstance, subid: subid}
	if existing, ok := p.bySub[key]; ok {
		return existing, nil
	}

	var found netip.Addr
	var ok bool
	for _, r := range p.ranges {
		r.Iterate(func(addr netip.Addr) bool {
			if _, isAllocated := p.allocated[addr]; isAllocated {
				return true
			}
			if _, isReserved := p.reserved[addr]; isReserved {
				return true
			}
			found = addr
			ok = true
			return false
		})
		if ok {
			break
		}
	}
	if !ok {
		return netip.Addr{}, newErr(PoolFull, "no available ip in pool %q", p.Name)
	}

	p.bind(found, subinstance, subid, resource)
	return found, nil
}

// AllocateSpecific allocates an exact ip, failing if it is outside all
// ranges, already allocated, or reserved.
func (p *Pool) AllocateSpecific(addr netip.Addr, subinstance, subid string, resource ResourceType) error {
	if !p.inAnyRange(addr) {
		return newErr(IPNotFound, "%s is not within any configured range", addr)
	}
	if _, ok := p.allocated[addr]; ok {
		return newErr(IPAlreadyAllocated, "%s is already allocated", addr)
	}
	if _, ok := p.reserved[addr]; ok {
		return newErr(IPNotAvailable, "%s is reserved", addr)
	}
	p.bind(addr, subinstance, subid, resource)
	return nil
}

func (p *Pool) bind(addr netip.Addr, subinstance, subid string, resource ResourceType) {
	binding := &Binding{
		IP:          addr,
		Subinstance: subinstance,
		Subid:       subid,
		Resource:    resource,
		AllocatedAt: time.Now(),
	}
	p.allocated[addr] = binding
	p.bySubinstance[subinstance] = append(p.bySubinstance[subinstance], addr)
	p.bySub[subKey{subinstance: subinstance, subid: subid}] = addr
	p.byResource[resource.AsKey()] = addr
}

func (p *Pool) unbind(binding *Binding) {
	delete(p.allocated, binding.IP)
	delete(p.bySub, subKey{subinstance: binding.Subinstance, subid: binding.Subid})
	delete(p.byResource, binding.Resource.AsKey())

	ips := p.bySubinstance[binding.Subinstance]
	for i, ip := range ips {
		if ip == binding.IP {
			ips = append(ips[:i], ips[i+1:]...)
			break
		}
	}
	if len(ips) == 0 {
		delete(p.bySubinstance, binding.Subinstance)
	} else {
		p.bySubinstance[binding.Subinstance] = ips
	}
}

// ReleaseByIP releases the binding for a specific ip.
func (p *Pool) ReleaseByIP(addr netip.Addr) error {
	binding, ok := p.allocated[addr]
	if !ok {
		return newErr(BindingNotFound, "no binding for %s", addr)
	}
	p.unbind(binding)
	return nil
}

// ReleaseBySubid releases the binding for (subinstance, subid).
func (p *Pool) ReleaseBySubid(subinstance, subid string) error {
	addr, ok := p.bySub[subKey{subinstance: subinstance, subid: subid}]
	if !ok {
		return newErr(BindingNotFound, "no binding for %s/%s", subinstance, subid)
	}
	return p.ReleaseByIP(addr)
}

// ReleaseBySubinstance releases every binding under a subinstance.
func (p *Pool) ReleaseBySubinstance(subinstance string) error {
	ips := append([]netip.Addr(nil), p.bySubinstance[subinstance]...)
	for _, addr := range ips {
		if err := p.ReleaseByIP(addr); err != nil {
			return err
		}
	}
	return nil
}

// GetBinding looks up the binding for an ip.
func (p *Pool) GetBinding(addr netip.Addr) (*Binding, bool) {
	b, ok := p.allocated[addr]
	return b, ok
}

// FindBySubid looks up the binding for (subinstance, subid).
func (p *Pool) FindBySubid(subinstance, subid string) (*Binding, bool) {
	addr, ok := p.bySub[subKey{subinstance: subinstance, subid: subid}]
	if !ok {
		return nil, false
	}
	return p.GetBinding(addr)
}

// FindByResource looks up the binding by "{typeName}:{identifier}".
func (p *Pool) FindByResource(typeName, identifier string) (*Binding, bool) {
	addr, ok := p.byResource[typeName+":"+identifier]
	if !ok {
		return nil, false
	}
	return p.GetBinding(addr)
}

// ListBySubinstance returns the ips bound under a subinstance, in
// allocation order.
func (p *Pool) ListBySubinstance(subinstance string) []netip.Addr {
	return append([]netip.Addr(nil), p.bySubinstance[subinstance]...)
}

// ListBindings returns every current binding, in no particular order.
func (p *Pool) ListBindings() []*Binding {
	out := make([]*Binding, 0, len(p.allocated))
	for _, b := range p.allocated {
		out = append(out, b)
	}
	return out
}

func (p *Pool) countTotalIPs() int {
	total := 0
	for _, r := range p.ranges {
		total += int(r.Count())
	}
	return total
}

// StatsSnapshot returns the pool's current utilization.
func (p *Pool) StatsSnapshot() Stats {
	total := p.countTotalIPs()
	allocated := len(p.allocated)
	reserved := len(p.reserved)
	available := total - allocated - reserved
	if available < 0 {
		available = 0
	}
	return Stats{
		Name:      p.Name,
		Total:     total,
		Allocated: allocated,
		Reserved:  reserved,
		Available: available,
	}
}
