package classification

import (
	"strings"

	"github.com/c360studio/lccshelf/callnumber"
)

// Walk visits n and its descendants depth-first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// PathTo returns the chain of nodes from n down to the most specific
// descendant containing cn, or nil when n does not contain it. At each
// level the first containing child is followed.
func (n *Node) PathTo(cn callnumber.CallNumber) []*Node {
	if !n.Contains(cn) {
		return nil
	}
	path := []*Node{n}
	cur := n
	for {
		var next *Node
		for _, c := range cur.Children {
			if c.Contains(cn) {
				next = c
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		cur = next
	}
}

// Find returns the first node whose code, name or ASCII name matches id
// case-insensitively.
func (n *Node) Find(id string) *Node {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	var found *Node
	n.Walk(func(c *Node) bool {
		if strings.EqualFold(c.Code, id) || strings.EqualFold(c.Name, id) || strings.EqualFold(c.ASCIIName, id) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Prune returns a copy of the subtree in which every node at or below
// depth contains cn. Shallower nodes are kept as context. It returns nil
// when n itself is at or below depth and does not contain cn.
func (n *Node) Prune(cn callnumber.CallNumber, depth int) *Node {
	if n.Depth >= depth && !n.Contains(cn) {
		return nil
	}
	cp := *n
	cp.Children = nil
	for _, c := range n.Children {
		if pc := c.Prune(cn, depth); pc != nil {
			cp.Children = append(cp.Children, pc)
		}
	}
	return &cp
}
