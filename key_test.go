package iptable

import "testing"

func mustParse(t *testing.T, s string) (key, int, int) {
	t.Helper()
	addr, maskLen, af, err := parseCIDR(s)
	if err != nil {
		t.Fatalf("parseCIDR(%q): %v", s, err)
	}
	return addr, maskLen, af
}

func TestParseShorthand(t *testing.T) {
	addr, maskLen, af := mustParse(t, "10/8")
	if maskLen != 8 || af != afIPv4 {
		t.Fatalf("got maskLen=%d af=%d", maskLen, af)
	}
	want := []byte{10, 0, 0, 0}
	if !bytesEqual(addr.payload(), want) {
		t.Fatalf("got %v, want %v", addr.payload(), want)
	}

	addr, maskLen, af = mustParse(t, "10.10/8")
	if maskLen != 8 || af != afIPv4 {
		t.Fatalf("got maskLen=%d af=%d", maskLen, af)
	}
	want = []byte{10, 10, 0, 0}
	if !bytesEqual(addr.payload(), want) {
		t.Fatalf("got %v, want %v", addr.payload(), want)
	}
}

func TestParseRejects(t *testing.T) {
	if _, _, _, err := parseCIDR("1.2.3.4/33"); err == nil {
		t.Fatal("expected PARSE_ERROR for mask 33")
	}
	if _, _, _, err := parseCIDR("256.0.0.0"); err == nil {
		t.Fatal("expected PARSE_ERROR for octet 256")
	}
	if _, _, _, err := parseCIDR(""); err == nil {
		t.Fatal("expected PARSE_ERROR for empty string")
	}
}

func TestParseIPv6(t *testing.T) {
	addr, maskLen, af := mustParse(t, "2f::/128")
	if maskLen != 128 || af != afIPv6 {
		t.Fatalf("got maskLen=%d af=%d", maskLen, af)
	}
	s, err := formatKey(addr)
	if err != nil {
		t.Fatal(err)
	}
	if s != "2f::" {
		t.Fatalf("got %q, want 2f::", s)
	}
}

func TestMaskByLengthAndToLen(t *testing.T) {
	for _, n := range []int{0, 1, 8, 9, 24, 31, 32} {
		m, err := maskByLength(n, afIPv4)
		if err != nil {
			t.Fatalf("maskByLength(%d): %v", n, err)
		}
		if got := tolen(m); got != n {
			t.Fatalf("tolen(maskByLength(%d)) = %d", n, got)
		}
	}
}

func TestIsIn(t *testing.T) {
	addr, _, _ := mustParse(t, "10.10.10.1")
	pfx, maskLen, _ := mustParse(t, "10.10.0.0/16")
	mask, err := maskByLength(maskLen, afIPv4)
	if err != nil {
		t.Fatal(err)
	}
	if !isIn(addr, pfx, mask) {
		t.Fatal("expected 10.10.10.1 to be in 10.10.0.0/16")
	}
	other, _, _ := mustParse(t, "10.11.0.0")
	if isIn(other, pfx, mask) {
		t.Fatal("expected 10.11.0.0 not in 10.10.0.0/16")
	}
}

func TestPairRoundTrip(t *testing.T) {
	a, maskLen, _ := mustParse(t, "192.168.1.0/25")
	mask, err := maskByLength(maskLen, afIPv4)
	if err != nil {
		t.Fatal(err)
	}
	b, err := pair(a, mask)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := formatKey(b)
	if s != "192.168.1.128" {
		t.Fatalf("got %q, want 192.168.1.128", s)
	}
	back, err := pair(b, mask)
	if err != nil {
		t.Fatal(err)
	}
	if !bytesEqual(back.payload(), a.payload()) {
		t.Fatalf("pair(pair(a)) != a: got %v want %v", back.payload(), a.payload())
	}
}

func TestPairRejectsZeroMask(t *testing.T) {
	a, _, _ := mustParse(t, "10.0.0.0")
	zeroMask, err := maskByLength(0, afIPv4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pair(a, zeroMask); err == nil {
		t.Fatal("expected error pairing against a /0 mask")
	}
}

func TestBroadcast(t *testing.T) {
	addr, maskLen, _ := mustParse(t, "10.10.0.0/16")
	mask, err := maskByLength(maskLen, afIPv4)
	if err != nil {
		t.Fatal(err)
	}
	b := broadcast(addr, mask)
	s, err := formatKey(b)
	if err != nil {
		t.Fatal(err)
	}
	if s != "10.10.255.255" {
		t.Fatalf("got %q, want 10.10.255.255", s)
	}
}

func TestInvert(t *testing.T) {
	addr, _, _ := mustParse(t, "0.0.255.255")
	want := []byte{255, 255, 0, 0}
	if !bytesEqual(invert(addr).payload(), want) {
		t.Fatalf("got %v, want %v", invert(addr).payload(), want)
	}
	if !bytesEqual(invert(invert(addr)).payload(), addr.payload()) {
		t.Fatal("invert(invert(k)) != k")
	}
}

func TestCompareKeys(t *testing.T) {
	a, _, _ := mustParse(t, "10.0.0.1")
	b, _, _ := mustParse(t, "10.0.0.2")
	c, _, _ := mustParse(t, "10.0.0.1")

	if got, err := compareKeys(a, b); err != nil || got >= 0 {
		t.Fatalf("compareKeys(a,b) = %d, %v; want negative, nil", got, err)
	}
	if got, err := compareKeys(b, a); err != nil || got <= 0 {
		t.Fatalf("compareKeys(b,a) = %d, %v; want positive, nil", got, err)
	}
	if got, err := compareKeys(a, c); err != nil || got != 0 {
		t.Fatalf("compareKeys(a,c) = %d, %v; want 0, nil", got, err)
	}

	v6, _, _ := mustParse(t, "::1")
	if _, err := compareKeys(a, v6); err == nil {
		t.Fatal("expected error comparing keys of different families")
	}
}

func TestDecr(t *testing.T) {
	addr, _, _ := mustParse(t, "10.0.0.5")
	got, wrapped := decr(addr, 5)
	if wrapped {
		t.Fatal("unexpected wrap")
	}
	want := []byte{10, 0, 0, 0}
	if !bytesEqual(got.payload(), want) {
		t.Fatalf("got %v, want %v", got.payload(), want)
	}

	back, wrapped := incr(got, 5)
	if wrapped {
		t.Fatal("unexpected wrap")
	}
	if !bytesEqual(back.payload(), addr.payload()) {
		t.Fatal("incr(decr(k,n),n) != k")
	}

	zero, _, _ := mustParse(t, "0.0.0.0")
	_, wrapped = decr(zero, 1)
	if !wrapped {
		t.Fatal("expected wrap decrementing past 0.0.0.0")
	}
}
