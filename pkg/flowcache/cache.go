// Package flowcache implements C4: the per-data-record scratchpad threading
// derived state across field handlers within a single record, and the
// direction/client-selection machinery described in spec.md §4.4.
package flowcache

import "net"

// Direction is the resolved traffic direction for a record, per spec.md §3.
type Direction uint8

const (
	Unset Direction = iota
	Ingress
	Egress
	Internal
)

func (d Direction) String() string {
	switch d {
	case Ingress:
		return "ingress"
	case Egress:
		return "egress"
	case Internal:
		return "internal"
	default:
		return ""
	}
}

// DNSName holds a resolved PTR name for the lifetime of one record. The PTR
// cache (pkg/enrich/ptr) hands back resolved names by value, not a pointer
// into its entry map, so there is nothing to hold a live reference to: the
// name is either known or it isn't.
type DNSName struct {
	owned string
}

// Owning wraps a freshly resolved name.
func Owning(name string) DNSName {
	return DNSName{owned: name}
}

// Resolve returns the name and whether it is populated.
func (n DNSName) Resolve() (string, bool) {
	return n.owned, n.owned != ""
}

// Cache is the per-record scratchpad. It is created fresh for every data
// record and discarded once that record's line has been emitted (spec.md
// §3 "Flow Cache").
type Cache struct {
	SrcAddr [16]byte
	DstAddr [16]byte
	HaveSrc bool
	HaveDst bool

	SrcPort uint16
	DstPort uint16

	SrcMAC     [6]byte
	DstMAC     [6]byte
	PostSrcMAC [6]byte
	PostDstMAC [6]byte
	HaveSrcMAC bool
	HaveDstMAC bool
	HavePostSrcMAC bool
	HavePostDstMAC bool

	Direction         Direction
	directionExplicit bool

	// ClientMAC is set at most once per record, per spec.md invariant (iv).
	clientMACPrinted bool

	ClientName DNSName
	TargetName DNSName
}

// New creates a fresh, empty Flow Cache for one data record.
func New() *Cache {
	return &Cache{}
}

// SetSrc stores the source address as IPv4-mapped IPv6, per spec.md §4.3.
func (c *Cache) SetSrc(addr [16]byte) {
	c.SrcAddr = addr
	c.HaveSrc = true
}

// SetDst stores the destination address as IPv4-mapped IPv6.
func (c *Cache) SetDst(addr [16]byte) {
	c.DstAddr = addr
	c.HaveDst = true
}

func (c *Cache) SetSrcMAC(mac [6]byte) {
	c.SrcMAC = mac
	c.HaveSrcMAC = true
}

func (c *Cache) SetDstMAC(mac [6]byte) {
	c.DstMAC = mac
	c.HaveDstMAC = true
}

func (c *Cache) SetPostSrcMAC(mac [6]byte) {
	c.PostSrcMAC = mac
	c.HavePostSrcMAC = true
}

func (c *Cache) SetPostDstMAC(mac [6]byte) {
	c.PostDstMAC = mac
	c.HavePostDstMAC = true
}

// SetDirection applies spec.md §4.4's "later explicit wins" rule: an
// explicit call always takes effect and marks the cache as explicitly set;
// an inferred call is ignored once any value (explicit or inferred) is
// already present, per invariant (iii) ("never reverted within that
// record").
func (c *Cache) SetDirection(d Direction, explicit bool) {
	if explicit {
		c.Direction = d
		c.directionExplicit = true
		return
	}
	if c.Direction == Unset {
		c.Direction = d
	}
}

// DirectionExplicit reports whether the direction came from the explicit
// NetFlow DIRECTION field rather than inference.
func (c *Cache) DirectionExplicit() bool {
	return c.directionExplicit
}

// ClientSide returns which side ("src" or "dst") is the client, per
// spec.md §4.4: ingress -> src, egress -> dst, internal -> dst preferred
// else src. ok is false when direction is still Unset.
type Side uint8

const (
	SideNone Side = iota
	SideSrc
	SideDst
)

func (c *Cache) ClientSide() (Side, bool) {
	switch c.Direction {
	case Ingress:
		return SideSrc, true
	case Egress:
		return SideDst, true
	case Internal:
		if c.HaveDst {
			return SideDst, true
		}
		if c.HaveSrc {
			return SideSrc, true
		}
		return SideNone, false
	default:
		return SideNone, false
	}
}

// ClientMAC returns the MAC address of the client side, using the same
// rule as ClientSide, preferring the "post" (router-rewritten) MAC when the
// "pre" one is unavailable and vice versa — callers pass which variant to
// prefer via spanMode (span-mode sensors use pre-route MACs).
func (c *Cache) ClientMAC(spanMode bool) ([6]byte, bool) {
	side, ok := c.ClientSide()
	if !ok {
		return [6]byte{}, false
	}
	if side == SideSrc {
		if spanMode && c.HaveSrcMAC {
			return c.SrcMAC, true
		}
		if c.HavePostSrcMAC {
			return c.PostSrcMAC, true
		}
		if c.HaveSrcMAC {
			return c.SrcMAC, true
		}
		return [6]byte{}, false
	}
	if spanMode && c.HaveDstMAC {
		return c.DstMAC, true
	}
	if c.HavePostDstMAC {
		return c.PostDstMAC, true
	}
	if c.HaveDstMAC {
		return c.DstMAC, true
	}
	return [6]byte{}, false
}

// ClientIP returns the IP address of the client side.
func (c *Cache) ClientIP() (net.IP, bool) {
	side, ok := c.ClientSide()
	if !ok {
		return nil, false
	}
	if side == SideSrc && c.HaveSrc {
		b := c.SrcAddr
		return net.IP(b[:]), true
	}
	if side == SideDst && c.HaveDst {
		b := c.DstAddr
		return net.IP(b[:]), true
	}
	return nil, false
}

// TargetIP returns the non-client side's address.
func (c *Cache) TargetIP() (net.IP, bool) {
	side, ok := c.ClientSide()
	if !ok {
		return nil, false
	}
	if side == SideSrc && c.HaveDst {
		b := c.DstAddr
		return net.IP(b[:]), true
	}
	if side == SideDst && c.HaveSrc {
		b := c.SrcAddr
		return net.IP(b[:]), true
	}
	return nil, false
}

// MarkClientMACPrinted and ClientMACPrinted implement invariant (iv):
// client_mac prints at most once per record.
func (c *Cache) MarkClientMACPrinted() { c.clientMACPrinted = true }
func (c *Cache) ClientMACPrinted() bool { return c.clientMACPrinted }
