// Package idpool implements a free-list allocator over a bounded,
// contiguous numeric range, grounded on VrfMgr's m_freeTables: a set of
// Linux kernel routing table IDs (1001-1999) handed out one at a time
// as VRFs are created and returned to the pool as they're deleted.
// Structurally it is the same registry-with-a-map shape as teacher's
// manager.TokenManager, generalized from random string tokens to a
// dense integer range and from time-based expiry to explicit release.
//
// Pool carries no internal locking; it is only ever touched from the
// single select loop goroutine, same as every other piece of the
// convergence engine.
package idpool

import "sort"

// Pool allocates IDs from [low, high).
type Pool struct {
	taken map[uint32]bool
	free  []uint32 // ascending
}

// New returns a pool with every ID in [low, high) initially free.
func New(low, high uint32) *Pool {
	p := &Pool{taken: make(map[uint32]bool)}
	for i := low; i < high; i++ {
		p.free = append(p.free, i)
	}
	return p
}

// Alloc returns the lowest free ID, matching
// VrfMgr::getFreeTable's *m_freeTables.begin() pick, or false if the
// pool is exhausted.
func (p *Pool) Alloc() (uint32, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	id := p.free[0]
	p.free = p.free[1:]
	p.taken[id] = true
	return id, true
}

// Reserve claims a specific ID out of the free list, for restoring a
// warm-restart inventory read back from the kernel — VrfMgr's
// constructor erasing each VRF table it discovers already exists from
// m_freeTables before any fresh allocation can hand it out again.
// Reserve reports false if id is out of range or already taken.
func (p *Pool) Reserve(id uint32) bool {
	if p.taken[id] {
		return false
	}
	for i, f := range p.free {
		if f == id {
			p.free = append(p.free[:i:i], p.free[i+1:]...)
			p.taken[id] = true
			return true
		}
	}
	return false
}

// Release returns id to the free list, matching VrfMgr::recycleTable.
// Releasing an ID that was never taken is a no-op.
func (p *Pool) Release(id uint32) {
	if !p.taken[id] {
		return
	}
	delete(p.taken, id)
	i := sort.Search(len(p.free), func(i int) bool { return p.free[i] >= id })
	p.free = append(p.free, 0)
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = id
}

// InUse reports whether id is currently allocated.
func (p *Pool) InUse(id uint32) bool {
	return p.taken[id]
}

// Available reports how many IDs remain unallocated.
func (p *Pool) Available() int {
	return len(p.free)
}
