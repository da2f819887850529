package xml

import (
	"errors"
	"strings"

	"github.com/rezonia/factura-importer/internal/model"
)

var errNoRoot = errors.New("document has no root element")

// Document is a located invoice-bearing document. For an AttachedDocument
// wrapper Root is the embedded Invoice or CreditNote and Outer is the
// wrapper itself; otherwise Outer is nil.
type Document struct {
	Kind     model.DocumentKind
	Root     Node
	Outer    Node
	Embedded bool
}

// directShape handles documents whose root is the invoice itself
type directShape struct {
	name string
	kind model.DocumentKind
}

func (s directShape) RootName() string         { return s.name }
func (s directShape) Kind() model.DocumentKind { return s.kind }

func (s directShape) Resolve(root Node) (*Document, error) {
	return &Document{Kind: s.kind, Root: root}, nil
}

// embeddedRoots lists the document types an AttachedDocument may carry
var embeddedRoots = []struct {
	name string
	kind model.DocumentKind
}{
	{"Invoice", model.KindInvoice},
	{"CreditNote", model.KindCreditNote},
}

// attachedShape unwraps an AttachedDocument whose Attachment description
// carries the invoice as text (usually CDATA)
type attachedShape struct{}

func (attachedShape) RootName() string         { return "AttachedDocument" }
func (attachedShape) Kind() model.DocumentKind { return model.KindAttached }

func (attachedShape) Resolve(root Node) (*Document, error) {
	var fragErr error
	for _, text := range descriptionTexts(root) {
		for _, er := range embeddedRoots {
			frag, ok := cutFragment(text, er.name)
			if !ok {
				continue
			}
			inner, err := ParseTree([]byte(frag))
			if err != nil {
				if fragErr == nil {
					fragErr = err
				}
				continue
			}
			if inner.LocalName() != er.name {
				continue
			}
			return &Document{Kind: er.kind, Root: inner, Outer: root, Embedded: true}, nil
		}
	}

	msg := "attached document carries no embedded Invoice or CreditNote"
	if fragErr != nil {
		msg = "attached document fragment is not well-formed XML"
	}
	return nil, model.NewExtractionError(model.ReasonNotAnInvoiceDocument, "Attachment/Description", msg, fragErr)
}

// descriptionTexts returns the Description texts found under Attachment
// elements, falling back to every Description in the wrapper
func descriptionTexts(root Node) []string {
	var nodes []Node
	for _, att := range DescendantsByName(root, "Attachment") {
		nodes = append(nodes, DescendantsByName(att, "Description")...)
	}
	if len(nodes) == 0 {
		nodes = DescendantsByName(root, "Description")
	}

	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := n.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

// cutFragment returns the text spanning the first <name opening tag and
// the last </name> closing tag in s. A prefixed root such as <fe:Invoice
// is accepted as well.
func cutFragment(s, name string) (string, bool) {
	start := openingTag(s, name)
	if start < 0 {
		return "", false
	}
	end := closingTagEnd(s[start:], name)
	if end < 0 {
		return "", false
	}
	return s[start : start+end], true
}

func openingTag(s, name string) int {
	from := 0
	for {
		i := strings.IndexByte(s[from:], '<')
		if i < 0 {
			return -1
		}
		i += from
		tag := s[i+1:]
		if local, rest, ok := splitQName(tag); ok && local == name && startsTagBoundary(rest) {
			return i
		}
		from = i + 1
	}
}

func closingTagEnd(s, name string) int {
	end := -1
	from := 0
	for {
		i := strings.Index(s[from:], "</")
		if i < 0 {
			return end
		}
		i += from
		local, rest, ok := splitQName(s[i+2:])
		if ok && local == name {
			rest = strings.TrimLeft(rest, " \t\r\n")
			if strings.HasPrefix(rest, ">") {
				end = len(s) - len(rest) + 1
			}
		}
		from = i + 2
	}
}

// splitQName reads an element name at the start of s and returns its local
// part and the remainder of s
func splitQName(s string) (local, rest string, ok bool) {
	n := 0
	for n < len(s) && isNameByte(s[n]) {
		n++
	}
	if n == 0 {
		return "", s, false
	}
	qname := s[:n]
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		qname = qname[i+1:]
	}
	return qname, s[n:], true
}

func isNameByte(c byte) bool {
	return c == ':' || c == '_' || c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func startsTagBoundary(rest string) bool {
	if rest == "" {
		return false
	}
	switch rest[0] {
	case ' ', '\t', '\r', '\n', '>', '/':
		return true
	}
	return false
}
