package xml

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// Node is the minimal read-only view of an XML element used by the
// extractor. Names are local names: namespace prefixes are dropped so the
// same lookups work across UBL namespace declarations and versions.
type Node interface {
	LocalName() string
	Text() string
	Children() []Node
}

type element struct {
	e *etree.Element
}

// FromElement wraps an etree element. A nil element yields a nil Node.
func FromElement(e *etree.Element) Node {
	if e == nil {
		return nil
	}
	return element{e: e}
}

func (n element) LocalName() string {
	return n.e.Tag
}

func (n element) Text() string {
	return strings.TrimSpace(n.e.Text())
}

func (n element) Children() []Node {
	elems := n.e.ChildElements()
	out := make([]Node, len(elems))
	for i, c := range elems {
		out[i] = element{e: c}
	}
	return out
}

// ChildByName returns the first direct child of n whose local name is name.
// Deeper elements are never considered.
func ChildByName(n Node, name string) Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children() {
		if c.LocalName() == name {
			return c
		}
	}
	return nil
}

// DescendantByName returns the first element below n, in document order
// (depth-first, pre-order), whose local name is name. n itself is excluded.
func DescendantByName(n Node, name string) Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children() {
		if c.LocalName() == name {
			return c
		}
		if found := DescendantByName(c, name); found != nil {
			return found
		}
	}
	return nil
}

// DescendantsByName returns every element below n named name, in document
// order.
func DescendantsByName(n Node, name string) []Node {
	var out []Node
	walk(n, func(c Node) {
		if c.LocalName() == name {
			out = append(out, c)
		}
	})
	return out
}

func walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	for _, c := range n.Children() {
		fn(c)
		walk(c, fn)
	}
}

// FindPath resolves a chain of descendant steps, the equivalent of the XPath
// //a//b//c evaluated relative to n. Candidates for each step are tried in
// document order and the first complete match is returned.
func FindPath(n Node, names ...string) Node {
	if n == nil {
		return nil
	}
	if len(names) == 0 {
		return n
	}
	if len(names) == 1 {
		return DescendantByName(n, names[0])
	}
	for _, c := range DescendantsByName(n, names[0]) {
		if found := FindPath(c, names[1:]...); found != nil {
			return found
		}
	}
	return nil
}

// TextOf returns the trimmed text of n, or "" for a nil node.
func TextOf(n Node) string {
	if n == nil {
		return ""
	}
	return n.Text()
}

// FirstText evaluates each path in order and returns the first non-empty
// text. Only the first match of each path is inspected.
func FirstText(n Node, paths ...[]string) string {
	for _, p := range paths {
		if s := TextOf(FindPath(n, p...)); s != "" {
			return s
		}
	}
	return ""
}

// DirectOrDescendantText looks for name among the direct children of n
// first and falls back to a subtree search only when no direct child
// carries a value. Extension blocks (UBLExtensions) nest elements with the
// same local names as the document header, so a subtree-first search would
// pick those up.
func DirectOrDescendantText(n Node, name string) string {
	if s := TextOf(ChildByName(n, name)); s != "" {
		return s
	}
	for _, d := range DescendantsByName(n, name) {
		if s := d.Text(); s != "" {
			return s
		}
	}
	return ""
}

// NewDocument returns an etree document that decodes the charset declared in
// the XML prolog (ISO-8859-1, windows-1252 and the like) into UTF-8
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	return doc
}

// ParseTree parses raw XML into a Node tree rooted at the document element
func ParseTree(raw []byte) (Node, error) {
	doc := NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errNoRoot
	}
	return FromElement(root), nil
}
