package ippool

import (
	"net"
	"net/netip"

	"github.com/apparentlymart/go-cidr/cidr"
)

// IPRange is an inclusive [Start, End] address range, optionally
// recording the prefix length it was derived from.
type IPRange struct {
	Start  netip.Addr
	End    netip.Addr
	Prefix int // -1 if the range wasn't built from a CIDR
}

// NewRange builds an explicit inclusive range.
func NewRange(start, end netip.Addr) (IPRange, error) {
	if !start.IsValid() || !end.IsValid() {
		return IPRange{}, newErr(InvalidIPAddress, "start/end must be valid addresses")
	}
	if start.Is4() != end.Is4() {
		return IPRange{}, newErr(InvalidRange, "start and end must share an address family")
	}
	if end.Less(start) {
		return IPRange{}, newErr(InvalidRange, "end %s precedes start %s", end, start)
	}
	return IPRange{Start: start, End: end, Prefix: -1}, nil
}

// NewRangeFromCIDR parses "<addr>/<prefix>" and computes the inclusive
// network range. IPv4 requires prefix <= 32, IPv6 requires prefix <= 128.
func NewRangeFromCIDR(s string) (IPRange, error) {
	_, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return IPRange{}, newErr(InvalidSubnet, "%q: %v", s, err)
	}
	ones, bits := ipnet.Mask.Size()
	if bits == 32 && ones > 32 {
		return IPRange{}, newErr(InvalidSubnet, "%q: ipv4 prefix must be <= 32", s)
	}
	if bits == 128 && ones > 128 {
		return IPRange{}, newErr(InvalidSubnet, "%q: ipv6 prefix must be <= 128", s)
	}

	first, last := cidr.AddressRange(ipnet)
	startAddr, ok := netip.AddrFromSlice(first)
	if !ok {
		return IPRange{}, newErr(InvalidSubnet, "%q: could not compute network address", s)
	}
	endAddr, ok := netip.AddrFromSlice(last)
	if !ok {
		return IPRange{}, newErr(InvalidSubnet, "%q: could not compute broadcast address", s)
	}
	if bits == 32 {
		startAddr = startAddr.Unmap()
		endAddr = endAddr.Unmap()
	}
	return IPRange{Start: startAddr, End: endAddr, Prefix: ones}, nil
}

// Contains reports whether addr lies within the inclusive range.
func (r IPRange) Contains(addr netip.Addr) bool {
	if addr.Is4() != r.Start.Is4() {
		return false
	}
	return !addr.Less(r.Start) && !r.End.Less(addr)
}

// Count returns the number of addresses in the range (1 for a single
// address). It is only safe for ranges small enough to fit a uint64,
// which holds for all pool sizes this system is designed to manage.
func (r IPRange) Count() uint64 {
	count := uint64(1)
	cur := r.Start
	for cur != r.End {
		cur = cur.Next()
		count++
	}
	return count
}

// Iterate calls fn for every address in the range, in ascending order,
// stopping early if fn returns false.
func (r IPRange) Iterate(fn func(netip.Addr) bool) {
	cur := r.Start
	for {
		if !fn(cur) {
			return
		}
		if cur == r.End {
			return
		}
		cur = cur.Next()
	}
}
