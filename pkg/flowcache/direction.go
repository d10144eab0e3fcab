package flowcache

import "github.com/flowforge/flowforge/pkg/wire"

// InferFromMAC implements the MAC-inference tie-break of spec.md §4.4:
// only applies when the sensor has a router-MAC set and both src/dst MACs
// are valid unicast. isRouterMAC reports whether mac is one of the
// sensor's configured router MACs. spanMode selects dst_mac vs
// post_dst_mac as the "routed" MAC to compare, per the original's
// span-port handling (see SPEC_FULL.md §4 supplemented features).
//
// Never errors: returns (Unset, false) when inference cannot apply, which
// is the "best-effort, never fatal" semantics spec.md §9 calls for.
func (c *Cache) InferFromMAC(spanMode bool, isRouterMAC func(mac [6]byte) bool) (Direction, bool) {
	routedMAC := c.PostDstMAC
	haveRouted := c.HavePostDstMAC
	if spanMode {
		routedMAC = c.DstMAC
		haveRouted = c.HaveDstMAC
	}

	if !c.HaveSrcMAC || !haveRouted {
		return Unset, false
	}
	if !wire.IsUnicastValid(c.SrcMAC) || !wire.IsUnicastValid(routedMAC) {
		return Unset, false
	}

	srcIsRouter := isRouterMAC(c.SrcMAC)
	dstIsRouter := isRouterMAC(routedMAC)

	switch {
	case srcIsRouter && !dstIsRouter:
		return Egress, true
	case dstIsRouter && !srcIsRouter:
		return Ingress, true
	default:
		return Unset, false
	}
}

// InferFromHomeNet implements the IP-inference tie-break of spec.md §4.4.
// inHomeNet reports whether an address belongs to the sensor's home-network
// list. Traffic whose source is the known (home) side and destination is
// not is ingress; the reverse is egress — the original's
// ip_direction(known_src, known_dst).
func (c *Cache) InferFromHomeNet(inHomeNet func(addr [16]byte) bool) (Direction, bool) {
	srcHome := c.HaveSrc && inHomeNet(c.SrcAddr)
	dstHome := c.HaveDst && inHomeNet(c.DstAddr)

	switch {
	case srcHome && dstHome:
		return Internal, true
	case srcHome && !dstHome:
		return Ingress, true
	case dstHome && !srcHome:
		return Egress, true
	default:
		return Unset, false
	}
}

// ResolveDirection applies the full tie-break order from spec.md §4.4: an
// already-explicit value is left untouched; otherwise MAC inference is
// tried, then IP inference. It always leaves the cache in a terminal state
// (possibly still Unset, if neither inference matched).
func (c *Cache) ResolveDirection(spanMode bool, isRouterMAC func(mac [6]byte) bool, inHomeNet func(addr [16]byte) bool) {
	if c.Direction != Unset {
		return
	}
	if d, ok := c.InferFromMAC(spanMode, isRouterMAC); ok {
		c.SetDirection(d, false)
		return
	}
	if d, ok := c.InferFromHomeNet(inHomeNet); ok {
		c.SetDirection(d, false)
	}
}
