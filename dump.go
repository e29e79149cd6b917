package iptable

import (
	"fmt"
	"io"
)

// DumpNodes walks the explicit node-iteration stack over both trees
// and writes one line per frame. It exists for the cmd/iptdump
// diagnostics binary and for visualiser-style debugging; it is not
// part of the stable lookup path.
func DumpNodes(t *Table, w io.Writer) {
	for _, af := range []int{afIPv4, afIPv6} {
		tr := t.treeFor(af)
		tr.mu.RLock()
		dumpTree(tr, w, af)
		tr.mu.RUnlock()
	}
}

func dumpTree(tr *radixTree, w io.Writer, af int) {
	var stack nodeIterStack
	stack.firstNode(tr)
	fmt.Fprintf(w, "-- af %d --\n", af)
	for {
		kind, n, m, ok := stack.nextNode(tr)
		if !ok {
			break
		}
		switch kind {
		case frameNodeHead:
			fmt.Fprintln(w, "NODE_HEAD")
		case frameNode:
			if n.isLeaf() {
				s, _ := formatKey(n.key)
				fmt.Fprintf(w, "LEAF  %s/%d deleted=%v\n", s, leafMaskLen(n.bit), n.isDeleted())
			} else {
				fmt.Fprintf(w, "NODE  bit=%d offset=%d\n", n.bit, n.offset)
			}
		case frameMaskRef:
			maskLen := m.bit - keyOffset
			fmt.Fprintf(w, "MASK_REF len=%d refs=%d\n", maskLen, m.refs)
		}
	}
}
