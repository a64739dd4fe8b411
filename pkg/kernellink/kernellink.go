// Package kernellink wraps the `ip` command-line tool the way
// cfgmgr's VrfMgr does: a VRF is a Linux netdev, not a SAI object, so
// switchorch pushes it to the kernel with iproute2 rather than through
// the HAL. Link is the seam between that shell-out and the orchs that
// need it, with an in-memory fake (pkg/kernellink/fake) standing in
// for tests — an orch never calls os/exec directly.
package kernellink

import "context"

// Link is the kernel netdev surface an orch needs: creating and
// removing a link, enslaving another interface to it, and assigning it
// addresses. It deliberately does not cover routing — ASIC-resident
// routes go through the HAL, and kernel FIB sync rides on top of this
// same netdev state rather than needing its own method here.
type Link interface {
	// AddLink creates a netdev named name of the given kernel link type
	// (e.g. "vrf", "dummy") with type-specific attrs (e.g. {"table":
	// "1001"} for a vrf link) and brings it up, matching
	// VrfMgr::setLink's `ip link add ... type vrf table N` plus
	// `ip link set ... up`.
	AddLink(ctx context.Context, name, linkType string, attrs map[string]string) error
	// DelLink removes a netdev, matching VrfMgr::delLink.
	DelLink(ctx context.Context, name string) error
	// LinkExists reports whether a netdev by this name is already
	// present, so an orch can treat AddLink as idempotent the way
	// VrfMgr::setLink's early return does.
	LinkExists(ctx context.Context, name string) (bool, error)

	// SetMaster enslaves the link named name to the link named master
	// (an empty master detaches it), the kernel-level equivalent of
	// binding a physical or sub-interface into a VRF.
	SetMaster(ctx context.Context, name, master string) error

	// AddAddr assigns an address in CIDR form to a netdev.
	AddAddr(ctx context.Context, name, cidr string) error
	// DelAddr removes an address in CIDR form from a netdev.
	DelAddr(ctx context.Context, name, cidr string) error

	// ExistingVRFs returns every VRF netdev currently present in the
	// kernel, keyed by name with its bound routing table ID, matching
	// VrfMgr's constructor parsing `ip -d link show type vrf` to
	// rebuild m_vrfTableMap across a warm restart.
	ExistingVRFs(ctx context.Context) (map[string]uint32, error)
}
