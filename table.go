package iptable

import (
	"net/netip"
	"strconv"
	"sync/atomic"
)

// LPMResult carries the matched prefix (Addr is its network address,
// not the query address) and its value, so callers get the winning
// prefix alongside its value without a second lookup.
type LPMResult struct {
	Addr   netip.Addr
	Prefix netip.Prefix
	Value  any
}

// Table is the dual-stack facade: two radix trees (v4, v6), a shared
// purge-callback lifecycle, and per-family active-entry counters.
type Table struct {
	v4, v6 *radixTree
	purge  PurgeFunc

	count4 int64
	count6 int64

	stack nodeIterStack
}

// NewTable allocates two empty trees. purge may be nil, in which case
// departing values are simply dropped. prealloc is a hint only; this
// pointer-based representation does not preallocate node storage, but
// the parameter is kept for call-site compatibility with pool-backed
// implementations that do use it.
func NewTable(purge PurgeFunc, prealloc int) *Table {
	_ = prealloc
	return &Table{
		v4:    newRadixTree(afIPv4),
		v6:    newRadixTree(afIPv6),
		purge: purge,
	}
}

func (t *Table) treeFor(af int) *radixTree {
	if af == afIPv6 {
		return t.v6
	}
	return t.v4
}

func (t *Table) adjustCount(af int, delta int) {
	if af == afIPv6 {
		atomic.AddInt64(&t.count6, int64(delta))
		return
	}
	atomic.AddInt64(&t.count4, int64(delta))
}

// Count4 returns the number of non-deleted IPv4 entries.
func (t *Table) Count4() int { return int(atomic.LoadInt64(&t.count4)) }

// Count6 returns the number of non-deleted IPv6 entries.
func (t *Table) Count6() int { return int(atomic.LoadInt64(&t.count6)) }

// Len returns the combined IPv4+IPv6 entry count.
func (t *Table) Len() int { return t.Count4() + t.Count6() }

func parseAndMask(cidr string) (addr, mask key, maskLen, af int, err error) {
	addr, maskLen, af, err = parseCIDR(cidr)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	mask, err = maskByLength(maskLen, af)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	addr = network(addr, mask)
	return addr, mask, maskLen, af, nil
}

// Set attaches value to the CIDR prefix, overwriting and purging any
// existing value.
func (t *Table) Set(cidr string, value any) error {
	addr, mask, maskLen, af, err := parseAndMask(cidr)
	if err != nil {
		return err
	}
	tr := t.treeFor(af)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, delta := setEntry(tr, t.purge, addr, mask, maskLen, value)
	t.adjustCount(af, delta)
	return nil
}

// Get returns the exact-match value for cidr, or ErrNotFound.
func (t *Table) Get(cidr string) (any, error) {
	addr, mask, maskLen, af, err := parseAndMask(cidr)
	if err != nil {
		return nil, err
	}
	tr := t.treeFor(af)
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	v, ok := getEntry(tr, addr, mask, maskLen)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Delete removes the exact-match entry for cidr. While a leaf iterator
// is active on that family's tree, this degrades to a soft delete instead
// of a structural one, so the iterator never observes a collapsed node.
func (t *Table) Delete(cidr string) error {
	addr, mask, maskLen, af, err := parseAndMask(cidr)
	if err != nil {
		return err
	}
	tr := t.treeFor(af)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	ok, delta := deleteEntry(tr, t.purge, addr, mask, maskLen)
	if !ok {
		return ErrNotFound
	}
	t.adjustCount(af, delta)
	return nil
}

// Lpm performs a longest-prefix-match lookup for the given address
// literal (no mask suffix required).
func (t *Table) Lpm(addrLiteral string) (*LPMResult, error) {
	addr, _, af, err := parseCIDR(addrLiteral)
	if err != nil {
		return nil, err
	}
	tr := t.treeFor(af)
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	leaf := tr.lpm(addr)
	if leaf == nil || leaf.entry == nil {
		return nil, ErrNotFound
	}
	return leafResult(leaf)
}

// Lsm returns the next strictly-less-specific stored prefix covering
// cidr's own address, or ErrNotFound.
func (t *Table) Lsm(cidr string) (*LPMResult, error) {
	addr, mask, maskLen, af, err := parseAndMask(cidr)
	if err != nil {
		return nil, err
	}
	tr := t.treeFor(af)
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	anchor := tr.exactLookup(addr, mask, maskLen)
	if anchor == nil {
		return nil, ErrNotFound
	}
	leaf := tr.lsm(anchor)
	if leaf == nil {
		return nil, ErrNotFound
	}
	return leafResult(leaf)
}

func leafResult(leaf *node) (*LPMResult, error) {
	s, err := formatKey(leaf.key)
	if err != nil {
		return nil, err
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, err
	}
	pfx := netip.PrefixFrom(addr, leafMaskLen(leaf.bit))
	var v any
	if leaf.entry != nil {
		v = leaf.entry.value
	}
	return &LPMResult{Addr: addr, Prefix: pfx, Value: v}, nil
}

// Walk yields every non-deleted (prefix, value) pair in both trees,
// IPv4 first, in ascending key / decreasing mask-length order. fn
// returning false stops the walk early.
func (t *Table) Walk(fn func(prefix string, value any) bool) error {
	for _, tr := range []*radixTree{t.v4, t.v6} {
		tr.mu.RLock()
		tr.iterRef++
		tr.mu.RUnlock()

		cont := true
		walkLeaves(tr, func(n *node) bool {
			if n.isDeleted() || n.entry == nil {
				return true
			}
			s, err := formatKey(n.key)
			if err != nil {
				return true
			}
			maskLen := leafMaskLen(n.bit)
			prefix := s + "/" + strconv.Itoa(maskLen)
			cont = fn(prefix, n.entry.value)
			return cont
		})

		tr.mu.Lock()
		tr.iterRef--
		tr.mu.Unlock()
		if !cont {
			break
		}
	}
	return nil
}

// More returns every stored prefix strictly more specific than cidr
// (plus cidr itself when inclusive is true), in key order.
func (t *Table) More(cidr string, inclusive bool) ([]LPMResult, error) {
	addr, mask, maskLen, af, err := parseAndMask(cidr)
	if err != nil {
		return nil, err
	}
	tr := t.treeFor(af)
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	leaves := moreSpecific(tr, addr, mask, maskLen, inclusive)
	return resultSlice(leaves)
}

// Less returns every stored prefix strictly less specific than cidr
// (plus cidr itself when inclusive is true), walked via repeated lsm.
func (t *Table) Less(cidr string, inclusive bool) ([]LPMResult, error) {
	addr, mask, maskLen, af, err := parseAndMask(cidr)
	if err != nil {
		return nil, err
	}
	tr := t.treeFor(af)
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	anchor := tr.exactLookup(addr, mask, maskLen)
	if anchor == nil {
		return nil, ErrNotFound
	}
	leaves := lessSpecific(tr, anchor, inclusive)
	return resultSlice(leaves)
}

func resultSlice(leaves []*node) ([]LPMResult, error) {
	out := make([]LPMResult, 0, len(leaves))
	for _, n := range leaves {
		r, err := leafResult(n)
		if err != nil {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// Destroy walks both trees, invoking the purge callback on every
// remaining value including each sentinel's dupedkey, then detaches
// both tree heads and empties the diagnostics iteration stack.
func (t *Table) Destroy() {
	for _, tr := range []*radixTree{t.v4, t.v6} {
		tr.mu.Lock()
		walkLeaves(tr, func(n *node) bool {
			if n.entry != nil && !n.isDeleted() && t.purge != nil {
				t.purge(n.entry.value)
			}
			n.entry = nil
			return true
		})
		tr.top, tr.left, tr.right = nil, nil, nil
		tr.mu.Unlock()
	}
	t.stack.frames = nil
	t.count4, t.count6 = 0, 0
}
