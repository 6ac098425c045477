// Package dtb reads the kernel's expanded flattened device tree, where
// nodes are directories and properties are files of raw big-endian
// cells. Board bring-up uses it to locate the pin controller apertures
// and parent interrupts instead of hard-wiring physical addresses.
package dtb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPath is where Linux exposes the live tree.
const DefaultPath = "/proc/device-tree"

type Node struct {
	Name       string
	Parent     *Node
	Children   []*Node
	Properties map[string][]byte
}

// Load reads the tree rooted at dir, eagerly. The live tree is small;
// a board's worth of nodes loads in one pass.
func Load(dir string) (*Node, error) {
	return loadNode(nil, dir, "/")
}

func loadNode(parent *Node, dir, name string) (*Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dtb: %w", err)
	}
	n := &Node{
		Name:       name,
		Parent:     parent,
		Properties: make(map[string][]byte),
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			child, err := loadNode(n, path, e.Name())
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("dtb: %w", err)
		}
		n.Properties[e.Name()] = data
	}
	return n, nil
}

// Walk visits n and every descendant, parents first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Property returns a raw property value.
func (n *Node) Property(name string) ([]byte, bool) {
	v, ok := n.Properties[name]
	return v, ok
}

// Strings decodes a property as a NUL-separated string list.
func (n *Node) Strings(name string) []string {
	raw, ok := n.Properties[name]
	if !ok {
		return nil
	}
	var out []string
	for _, s := range bytes.Split(raw, []byte{0}) {
		if len(s) > 0 {
			out = append(out, string(s))
		}
	}
	return out
}

// U32s decodes a property as big-endian 32-bit cells.
func (n *Node) U32s(name string) []uint32 {
	raw, ok := n.Properties[name]
	if !ok {
		return nil
	}
	out := make([]uint32, 0, len(raw)/4)
	for off := 0; off+4 <= len(raw); off += 4 {
		out = append(out, binary.BigEndian.Uint32(raw[off:]))
	}
	return out
}

// Compatible reports whether the node's compatible list names with.
func (n *Node) Compatible(with string) bool {
	for _, c := range n.Strings("compatible") {
		if c == with {
			return true
		}
	}
	return false
}

// Enabled reports the node's status. No status property means enabled.
func (n *Node) Enabled() bool {
	raw, ok := n.Properties["status"]
	if !ok {
		return true
	}
	s := strings.TrimRight(string(raw), "\x00")
	return s == "okay" || s == "ok"
}

// Region is one reg entry: a physical address range.
type Region struct {
	Addr uint64
	Size uint64
}

// Reg decodes the node's reg property using the parent's cell widths
// (the device-tree defaults apply when the parent is silent).
func (n *Node) Reg() []Region {
	raw, ok := n.Properties["reg"]
	if !ok {
		return nil
	}
	ac, sc := 2, 1
	if n.Parent != nil {
		if v := n.Parent.U32s("#address-cells"); len(v) == 1 {
			ac = int(v[0])
		}
		if v := n.Parent.U32s("#size-cells"); len(v) == 1 {
			sc = int(v[0])
		}
	}
	stride := (ac + sc) * 4
	if stride == 0 {
		return nil
	}
	var regions []Region
	for off := 0; off+stride <= len(raw); off += stride {
		regions = append(regions, Region{
			Addr: cells(raw[off:], ac),
			Size: cells(raw[off+ac*4:], sc),
		})
	}
	return regions
}

func cells(b []byte, count int) uint64 {
	var v uint64
	for i := 0; i < count; i++ {
		v = v<<32 | uint64(binary.BigEndian.Uint32(b[i*4:]))
	}
	return v
}

// FindCompatible collects the enabled nodes matching a compatible
// string, in tree order.
func FindCompatible(root *Node, compat string) []*Node {
	var nodes []*Node
	root.Walk(func(n *Node) {
		if n.Compatible(compat) && n.Enabled() {
			nodes = append(nodes, n)
		}
	})
	return nodes
}
