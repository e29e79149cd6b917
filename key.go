package iptable

import (
	"math/bits"
	"net/netip"
	"strconv"
	"strings"
)

// key is the binary key representation shared by addresses and masks: the
// first byte is the total array length L, the remaining L-1 bytes carry
// the payload in network byte order. A length byte of 0 marks the tree's
// left-end sentinel, 0xFF the right-end sentinel. Mask keys may carry
// fewer than the family's canonical byte count; bytes beyond L-1 are
// implicitly zero (the short-L convention, preserved from the source for
// its interaction with mklist identity and leaf bit computation).
type key []byte

// keyOffset accounts for the length-byte prefix: bit 0 of the address
// sits at bit index 8 of the byte array.
const keyOffset = 8

const (
	ip4KeyLen  = 5 // length byte + 4 address bytes
	ip6KeyLen  = 17
	ip4MaxMask = 32
	ip6MaxMask = 128
)

const (
	afIPv4 = 4
	afIPv6 = 6
)

func (k key) len() int {
	if len(k) == 0 {
		return 0
	}
	return int(k[0])
}

func (k key) payload() []byte {
	if len(k) <= 1 {
		return nil
	}
	return k[1:]
}

// af derives the address family solely from L, per the data model: no
// other family tag is stored.
func (k key) af() int {
	switch k.len() {
	case ip4KeyLen:
		return afIPv4
	case ip6KeyLen:
		return afIPv6
	default:
		return 0
	}
}

func (k key) isLeftSentinel() bool  { return k.len() == 0 }
func (k key) isRightSentinel() bool { return k.len() == 0xFF }

func newKey(payload []byte) key {
	k := make(key, len(payload)+1)
	k[0] = byte(len(payload) + 1)
	copy(k[1:], payload)
	return k
}

func canonicalLen(af int) int {
	switch af {
	case afIPv4:
		return ip4KeyLen - 1
	case afIPv6:
		return ip6KeyLen - 1
	default:
		return 0
	}
}

func maxMask(af int) int {
	switch af {
	case afIPv4:
		return ip4MaxMask
	case afIPv6:
		return ip6MaxMask
	default:
		return 0
	}
}

// parseCIDR accepts "<address>[/<maskLen>]" and returns the binary address
// key, the mask length, and the address family. A missing "/N" yields
// the family's full host length (32 or 128), never -1. Family selection is driven entirely by the literal:
// a ':' means v6, anything else is tried as v4 shorthand.
func parseCIDR(s string) (addr key, maskLen int, af int, err error) {
	if s == "" {
		return nil, 0, 0, newError("ParseCIDR", KindParse, nil)
	}
	addrPart := s
	maskLen = -1
	if i := strings.IndexByte(s, '/'); i >= 0 {
		addrPart = s[:i]
		n, cerr := strconv.Atoi(s[i+1:])
		if cerr != nil {
			return nil, 0, 0, newError("ParseCIDR", KindParse, cerr)
		}
		maskLen = n
	}
	if addrPart == "" {
		return nil, 0, 0, newError("ParseCIDR", KindParse, nil)
	}

	if strings.IndexByte(addrPart, ':') >= 0 {
		af = afIPv6
		a, perr := netip.ParseAddr(addrPart)
		if perr != nil || !a.Is6() || a.Is4In6() {
			return nil, 0, 0, newError("ParseCIDR", KindParse, perr)
		}
		b := a.As16()
		addr = newKey(b[:])
	} else {
		af = afIPv4
		groups := strings.Split(addrPart, ".")
		if len(groups) > 4 {
			return nil, 0, 0, newError("ParseCIDR", KindParse, nil)
		}
		payload := make([]byte, 4)
		for i, g := range groups {
			if g == "" {
				return nil, 0, 0, newError("ParseCIDR", KindParse, nil)
			}
			v, gerr := strconv.ParseUint(g, 0, 16)
			if gerr != nil || v > 255 {
				return nil, 0, 0, newError("ParseCIDR", KindParse, gerr)
			}
			// Shorthand left-pads with zero bytes: "10" -> 10.0.0.0,
			// "10.10" -> 10.10.0.0. This differs from inet_aton's
			// "A.B -> A.0.0.B" and is preserved deliberately.
			payload[i] = byte(v)
		}
		addr = newKey(payload)
	}

	if maxMask(af) == 0 {
		return nil, 0, 0, newError("ParseCIDR", KindParse, nil)
	}
	if maskLen == -1 {
		maskLen = maxMask(af)
	}
	if maskLen < 0 || maskLen > maxMask(af) {
		return nil, 0, 0, newError("ParseCIDR", KindParse, nil)
	}
	return addr, maskLen, af, nil
}

// maskByLength produces the canonical mask key for maskLen bits in the
// given family, trimmed to its minimal significant-byte form (trailing
// all-zero bytes dropped, per the short-L convention).
func maskByLength(maskLen, af int) (key, error) {
	n := canonicalLen(af)
	if n == 0 {
		return nil, newError("MaskByLength", KindParse, nil)
	}
	if maskLen < 0 || maskLen > maxMask(af) {
		return nil, newError("MaskByLength", KindParse, nil)
	}
	full := make([]byte, n)
	for i := 0; i < n; i++ {
		switch {
		case maskLen >= (i+1)*8:
			full[i] = 0xFF
		case maskLen > i*8:
			bitsSet := maskLen - i*8
			full[i] = byte(0xFF << uint(8-bitsSet))
		default:
			full[i] = 0x00
		}
	}
	last := -1
	for i, b := range full {
		if b != 0 {
			last = i
		}
	}
	return newKey(full[:last+1]), nil
}

// tolen counts leading 1-bits in a mask key, honoring the short-L
// convention: bytes beyond the stored payload are implicitly zero.
func tolen(mask key) int {
	p := mask.payload()
	if len(p) == 0 {
		return 0
	}
	n := 0
	for _, b := range p {
		if b == 0xFF {
			n += 8
			continue
		}
		n += bits.LeadingZeros8(^b)
		break
	}
	return n
}

// formatKey renders an address key as canonical v4 dotted-quad or v6
// text, depending on its family.
func formatKey(k key) (string, error) {
	switch k.af() {
	case afIPv4:
		p := k.payload()
		if len(p) != 4 {
			return "", newError("Format", KindParse, nil)
		}
		a := netip.AddrFrom4([4]byte{p[0], p[1], p[2], p[3]})
		return a.String(), nil
	case afIPv6:
		p := k.payload()
		if len(p) != 16 {
			return "", newError("Format", KindParse, nil)
		}
		var b [16]byte
		copy(b[:], p)
		return netip.AddrFrom16(b).String(), nil
	default:
		return "", newError("Format", KindParse, nil)
	}
}

// compareKeys requires equal L and compares the payload lexicographically.
func compareKeys(a, b key) (int, error) {
	if a.len() != b.len() {
		return 0, newError("Compare", KindParse, nil)
	}
	pa, pb := a.payload(), b.payload()
	for i := range pa {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

// isIn reports whether addr&mask == pfx&mask, comparing only the bytes
// common to addr and pfx. A nil mask behaves as all-ones (host
// containment); a mask shorter than the comparison range contributes
// implicit zero bytes past its stored length.
func isIn(addr, pfx, mask key) bool {
	ap, pp := addr.payload(), pfx.payload()
	n := len(ap)
	if len(pp) < n {
		n = len(pp)
	}
	mp := mask.payload()
	for i := 0; i < n; i++ {
		mb := byte(0xFF)
		if mask != nil {
			if i < len(mp) {
				mb = mp[i]
			} else {
				mb = 0x00
			}
		}
		if ap[i]&mb != pp[i]&mb {
			return false
		}
	}
	return true
}

// maskBytesFull expands a (possibly short-L) mask key to the family's
// canonical byte count, zero-filling bytes beyond its stored payload.
func maskBytesFull(mask key, af int) []byte {
	n := canonicalLen(af)
	out := make([]byte, n)
	p := mask.payload()
	copy(out, p)
	return out
}

// network masks addr against mask, returning a new key of the address's
// canonical length; addr itself is left unchanged.
func network(addr, mask key) key {
	af := addr.af()
	mb := maskBytesFull(mask, af)
	ap := addr.payload()
	out := make([]byte, len(ap))
	for i := range ap {
		out[i] = ap[i] & mb[i]
	}
	return newKey(out)
}

// broadcast sets every host bit of addr to 1 against mask.
func broadcast(addr, mask key) key {
	af := addr.af()
	mb := maskBytesFull(mask, af)
	ap := addr.payload()
	out := make([]byte, len(ap))
	for i := range ap {
		out[i] = ap[i] | ^mb[i]
	}
	return newKey(out)
}

// invert complements the L-1 payload bytes.
func invert(k key) key {
	p := k.payload()
	out := make([]byte, len(p))
	for i := range p {
		out[i] = ^p[i]
	}
	return newKey(out)
}

// incr adds n to the payload as a big-endian integer, wrapping silently
// but reporting the wrap so the caller can detect address-space
// exhaustion while still observing a well-defined wrapped key.
func incr(k key, n uint64) (key, bool) {
	p := append([]byte(nil), k.payload()...)
	carry := n
	for i := len(p) - 1; i >= 0 && carry != 0; i-- {
		sum := uint64(p[i]) + (carry & 0xFF)
		p[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	wrapped := carry != 0
	return newKey(p), wrapped
}

// decr subtracts n from the payload as a big-endian integer, with the
// same wrap-reporting contract as incr.
func decr(k key, n uint64) (key, bool) {
	p := append([]byte(nil), k.payload()...)
	borrow := n
	for i := len(p) - 1; i >= 0 && borrow != 0; i-- {
		cur := int(p[i]) - int(borrow&0xFF)
		nextBorrow := borrow >> 8
		if cur < 0 {
			cur += 256
			nextBorrow++
		}
		p[i] = byte(cur)
		borrow = nextBorrow
	}
	wrapped := borrow != 0
	return newKey(p), wrapped
}

// pair computes the sibling key at the mask's length: flip the lowest
// set bit of the masked prefix. Fails when the mask has no set bits or
// when key encodes the all-zero address, since neither has a meaningful
// sibling.
func pair(k key, mask key) (key, error) {
	af := k.af()
	mb := maskBytesFull(mask, af)
	allZeroMask := true
	for _, b := range mb {
		if b != 0 {
			allZeroMask = false
			break
		}
	}
	if allZeroMask {
		return nil, newError("Pair", KindRange, nil)
	}
	masked := network(k, mask)
	mp := masked.payload()
	allZeroKey := true
	for _, b := range mp {
		if b != 0 {
			allZeroKey = false
			break
		}
	}
	if allZeroKey {
		return nil, newError("Pair", KindRange, nil)
	}

	// 1 + ~mask, as a big-endian integer over the canonical byte count.
	invMask := make([]byte, len(mb))
	for i := range mb {
		invMask[i] = ^mb[i]
	}
	inc, _ := incr(newKey(invMask), 1)
	incPayload := inc.payload()

	out := make([]byte, len(mp))
	for i := range mp {
		out[i] = mp[i] ^ incPayload[i]
	}
	// Zero all bytes beyond the mask's extent.
	sig := len(mask.payload())
	for i := sig; i < len(out); i++ {
		out[i] = 0
	}
	return newKey(out), nil
}
