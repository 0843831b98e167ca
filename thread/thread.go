// Package thread turns the flat comment list of a post into a forest of
// nested replies.
package thread

import (
	"github.com/aquilax/threadboard/comment"
)

const (
	indentStep = 20
	indentMax  = 100
)

// Node is a comment together with its direct replies, in input order.
type Node struct {
	comment.Comment
	Replies []*Node `json:"replies"`
}

// Report is the result of a build together with the ids that needed a
// placement policy.
type Report struct {
	Roots []*Node
	// Orphans declared a parent that is not part of the input, or
	// themselves, and were promoted to roots.
	Orphans []comment.ID
	// Broken were caught in a parent loop and were promoted to roots.
	Broken []comment.ID
}

// Build returns the forest for the given flat list. It never fails: every
// input comment appears exactly once in the result.
func Build(flat []comment.Comment) []*Node {
	return BuildReport(flat).Roots
}

// BuildReport is Build plus the list of comments placed by policy instead
// of by their declared parent.
func BuildReport(flat []comment.Comment) Report {
	rep := Report{Roots: make([]*Node, 0)}

	nodes := make([]*Node, len(flat))
	byID := make(map[comment.ID]*Node, len(flat))
	for i, c := range flat {
		n := &Node{Comment: c, Replies: make([]*Node, 0)}
		nodes[i] = n
		// first occurrence wins the lookup, later duplicates still get placed
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = n
		}
	}

	parent := make(map[*Node]*Node, len(flat))
	for _, n := range nodes {
		pid, ok := n.ParentID()
		if !ok {
			rep.Roots = append(rep.Roots, n)
			continue
		}
		p, found := byID[pid]
		if !found || p == n {
			rep.Orphans = append(rep.Orphans, n.ID)
			rep.Roots = append(rep.Roots, n)
			continue
		}
		p.Replies = append(p.Replies, n)
		parent[n] = p
	}

	// Anything not reachable from a root hangs off a parent loop.
	reached := make(map[*Node]bool, len(nodes))
	mark := func(from *Node) {
		stack := []*Node{from}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reached[n] {
				continue
			}
			reached[n] = true
			stack = append(stack, n.Replies...)
		}
	}
	for _, r := range rep.Roots {
		mark(r)
	}
	for _, n := range nodes {
		if reached[n] {
			continue
		}
		detach(parent[n], n)
		delete(parent, n)
		rep.Broken = append(rep.Broken, n.ID)
		rep.Roots = append(rep.Roots, n)
		mark(n)
	}
	return rep
}

func detach(p, child *Node) {
	if p == nil {
		return
	}
	for i, r := range p.Replies {
		if r == child {
			p.Replies = append(p.Replies[:i:i], p.Replies[i+1:]...)
			return
		}
	}
}

// Walk visits the forest depth first in display order. Returning false from
// fn skips the replies of that node.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	type item struct {
		n     *Node
		depth int
	}
	stack := make([]item, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, item{forest[i], 0})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(it.n, it.depth) {
			continue
		}
		for i := len(it.n.Replies) - 1; i >= 0; i-- {
			stack = append(stack, item{it.n.Replies[i], it.depth + 1})
		}
	}
}

type Entry struct {
	Node  *Node
	Depth int
}

// Flatten lists every node with its depth, in display order.
func Flatten(forest []*Node) []Entry {
	var out []Entry
	Walk(forest, func(n *Node, depth int) bool {
		out = append(out, Entry{Node: n, Depth: depth})
		return true
	})
	return out
}

// Count returns the number of nodes at every depth.
func Count(forest []*Node) int {
	total := 0
	Walk(forest, func(*Node, int) bool {
		total++
		return true
	})
	return total
}

// Find returns the first node with the given id, or nil.
func Find(forest []*Node, id comment.ID) *Node {
	var found *Node
	Walk(forest, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Indent is the horizontal offset in pixels used for a reply at depth.
func Indent(depth int) int {
	if depth <= 0 {
		return 0
	}
	return min(depth*indentStep, indentMax)
}
