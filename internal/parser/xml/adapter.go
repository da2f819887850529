package xml

import (
	"github.com/rezonia/factura-importer/internal/model"
)

// Shape resolves one kind of UBL root element into a locatable Document
type Shape interface {
	// RootName is the local name of the root element this shape handles
	RootName() string

	// Resolve builds the Document for a root already known to match
	Resolve(root Node) (*Document, error)

	// Kind returns the document kind
	Kind() model.DocumentKind
}

// Registry holds all registered shapes
type Registry struct {
	shapes []Shape
}

// NewRegistry creates registry with the Invoice, CreditNote and
// AttachedDocument shapes
func NewRegistry() *Registry {
	r := &Registry{}
	r.shapes = []Shape{
		directShape{name: "Invoice", kind: model.KindInvoice},
		directShape{name: "CreditNote", kind: model.KindCreditNote},
		attachedShape{},
	}
	return r
}

// Detect selects the shape for root by its local name
func (r *Registry) Detect(root Node) (Shape, error) {
	name := root.LocalName()
	for _, s := range r.shapes {
		if s.RootName() == name {
			return s, nil
		}
	}
	return nil, model.NewExtractionError(model.ReasonNotAnInvoiceDocument, "root",
		"unsupported root element <"+name+">", nil)
}

// Locate parses raw bytes and resolves them into a Document. A byte stream
// that does not parse reports MalformedXML; a well-formed document of any
// other shape reports NotAnInvoiceDocument.
func (r *Registry) Locate(raw []byte) (*Document, error) {
	root, err := ParseTree(raw)
	if err != nil {
		return nil, model.NewExtractionError(model.ReasonMalformedXML, "xml", "failed to parse XML", err)
	}
	shape, err := r.Detect(root)
	if err != nil {
		return nil, err
	}
	return shape.Resolve(root)
}
