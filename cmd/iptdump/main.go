// Command iptdump loads a file of "<cidr> <value>" lines into a Table
// and dumps it back out, either as a plain prefix walk or as a raw
// node-by-node traversal of the underlying radix structure.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hertogp-go/iptable"
)

func main() {
	nodes := flag.Bool("nodes", false, "dump the raw node-iteration stack instead of leaves")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: iptdump [flags] <file>")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		return
	}

	f, err := os.Open(args[0])
	if err != nil {
		log.Fatalf("Failed to open file: %v", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close file: %v", err)
		}
	}()

	tbl := iptable.NewTable(nil, 0)

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			log.Printf("line %d: expected '<cidr> <value>', got %q", line, text)
			continue
		}
		if err := tbl.Set(fields[0], fields[1]); err != nil {
			log.Printf("line %d: %v", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed reading %s: %v", args[0], err)
	}

	fmt.Printf("loaded %d IPv4 / %d IPv6 entries\n", tbl.Count4(), tbl.Count6())

	if *nodes {
		iptable.DumpNodes(tbl, os.Stdout)
		return
	}

	_ = tbl.Walk(func(prefix string, value any) bool {
		fmt.Printf("%-24s %v\n", prefix, value)
		return true
	})
}
