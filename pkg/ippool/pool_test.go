package ippool

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	addr, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return addr
}

func TestAllocateAndReleaseEndToEnd(t *testing.T) {
	pool := New("svc-pool")
	require.NoError(t, pool.AddCIDRRange("10.0.1.0/30"))

	ip1, err := pool.Allocate("tenant-a", "u1", Custom("svc"))
	require.NoError(t, err)
	require.Equal(t, mustAddr(t, "10.0.1.0"), ip1)

	ip2, err := pool.Allocate("tenant-a", "u2", Custom("svc"))
	require.NoError(t, err)
	require.Equal(t, mustAddr(t, "10.0.1.1"), ip2)

	ip3, err := pool.Allocate("tenant-a", "u3", Custom("svc"))
	require.NoError(t, err)
	require.Equal(t, mustAddr(t, "10.0.1.2"), ip3)

	ip4, err := pool.Allocate("tenant-a", "u4", Custom("svc"))
	require.NoError(t, err)
	require.Equal(t, mustAddr(t, "10.0.1.3"), ip4)

	_, err = pool.Allocate("tenant-a", "u5", Custom("svc"))
	require.Error(t, err)
	var poolErr *Error
	require.ErrorAs(t, err, &poolErr)
	require.Equal(t, PoolFull, poolErr.Kind)

	require.NoError(t, pool.ReleaseByIP(ip1))
	ip5, err := pool.Allocate("tenant-a", "u5", Custom("svc"))
	require.NoError(t, err)
	require.Equal(t, ip1, ip5)

	stats := pool.StatsSnapshot()
	require.Equal(t, Stats{Name: "svc-pool", Total: 4, Allocated: 4, Reserved: 0, Available: 0}, stats)
}

func TestAllocateIdempotent(t *testing.T) {
	pool := New("p")
	require.NoError(t, pool.AddCIDRRange("10.0.0.0/29"))

	first, err := pool.Allocate("t", "s1", Vm("v1"))
	require.NoError(t, err)

	second, err := pool.Allocate("t", "s1", Vm("v1"))
	require.NoError(t, err)
	require.Equal(t, first, second)

	stats := pool.StatsSnapshot()
	require.Equal(t, 1, stats.Allocated)
}

func TestReleaseRoundTrip(t *testing.T) {
	pool := New("p")
	require.NoError(t, pool.AddCIDRRange("10.0.0.0/29"))

	before := pool.StatsSnapshot()
	ip, err := pool.Allocate("t", "s1", Pod("p1"))
	require.NoError(t, err)

	require.NoError(t, pool.ReleaseBySubid("t", "s1"))
	after := pool.StatsSnapshot()
	require.Equal(t, before, after)

	_, ok := pool.GetBinding(ip)
	require.False(t, ok)
}

func TestIndexCoherence(t *testing.T) {
	pool := New("p")
	require.NoError(t, pool.AddCIDRRange("10.0.0.0/29"))

	ip, err := pool.Allocate("tenant-a", "req-1", Container("c1"))
	require.NoError(t, err)

	binding, ok := pool.GetBinding(ip)
	require.True(t, ok)
	require.Equal(t, "tenant-a", binding.Subinstance)

	bySub, ok := pool.FindBySubid("tenant-a", "req-1")
	require.True(t, ok)
	require.Equal(t, ip, bySub.IP)

	byResource, ok := pool.FindByResource("Container", "c1")
	require.True(t, ok)
	require.Equal(t, ip, byResource.IP)

	list := pool.ListBySubinstance("tenant-a")
	require.Equal(t, []netip.Addr{ip}, list)

	require.NoError(t, pool.ReleaseByIP(ip))
	_, ok = pool.FindBySubid("tenant-a", "req-1")
	require.False(t, ok)
	_, ok = pool.FindByResource("Container", "c1")
	require.False(t, ok)
	require.Empty(t, pool.ListBySubinstance("tenant-a"))
}

func TestReserveExcludesFromAllocation(t *testing.T) {
	pool := New("p")
	require.NoError(t, pool.AddCIDRRange("10.0.0.0/30"))
	first := mustAddr(t, "10.0.0.0")
	require.NoError(t, pool.Reserve(first))

	ip, err := pool.Allocate("t", "s1", Mac("m1"))
	require.NoError(t, err)
	require.NotEqual(t, first, ip)

	stats := pool.StatsSnapshot()
	require.Equal(t, 1, stats.Reserved)
	require.Equal(t, 4, stats.Total)
}

func TestAllocateSpecificErrors(t *testing.T) {
	pool := New("p")
	require.NoError(t, pool.AddCIDRRange("10.0.0.0/30"))

	outside := mustAddr(t, "192.168.0.1")
	err := pool.AllocateSpecific(outside, "t", "s", Custom("x"))
	require.Error(t, err)
	var poolErr *Error
	require.ErrorAs(t, err, &poolErr)
	require.Equal(t, IPNotFound, poolErr.Kind)

	addr := mustAddr(t, "10.0.0.1")
	require.NoError(t, pool.AllocateSpecific(addr, "t", "s", Custom("x")))

	err = pool.AllocateSpecific(addr, "t2", "s2", Custom("y"))
	require.True(t, errors.As(err, &poolErr))
	require.Equal(t, IPAlreadyAllocated, poolErr.Kind)
}

func TestInvalidCIDR(t *testing.T) {
	pool := New("p")
	err := pool.AddCIDRRange("not-a-cidr")
	require.Error(t, err)
	var poolErr *Error
	require.ErrorAs(t, err, &poolErr)
	require.Equal(t, InvalidSubnet, poolErr.Kind)
}
