package xml

import (
	"github.com/shopspring/decimal"

	dec "github.com/rezonia/factura-importer/internal/decimal"
)

// Amount is a monetary value read from the tree. Present is false when the
// element is missing or its text is blank or non-numeric; Value is then zero.
type Amount struct {
	Value   decimal.Decimal
	Present bool
}

func amountOf(n Node) Amount {
	v, ok := dec.ParseAmount(TextOf(n))
	return Amount{Value: v, Present: ok}
}

// Fields are the raw values extracted from one document tree. Nothing here
// is validated or sign-adjusted.
type Fields struct {
	ID               string
	ParentDocumentID string
	IssueDate        string
	ParentIssueDate  string
	SupplierName     string
	TaxID            string

	Payable       Amount
	LineExtension Amount
	Allowance     Amount
	Tax           Amount
}

// Supplier name lookup chains, tried in order
var supplierNamePaths = [][]string{
	{"AccountingSupplierParty", "RegistrationName"},
	{"SenderParty", "RegistrationName"},
	{"PartyName", "Name"},
}

// Supplier tax id lookup chains, tried in order
var taxIDPaths = [][]string{
	{"AccountingSupplierParty", "CompanyID"},
	{"SenderParty", "CompanyID"},
}

// Extract reads every field the normalizer needs from the tree rooted at
// root. Missing values are left empty or zero.
func Extract(root Node) Fields {
	f := Fields{
		ID:               DirectOrDescendantText(root, "ID"),
		ParentDocumentID: TextOf(DescendantByName(root, "ParentDocumentID")),
		IssueDate:        DirectOrDescendantText(root, "IssueDate"),
		ParentIssueDate:  TextOf(FindPath(root, "ParentDocumentLineReference", "IssueDate")),
		SupplierName:     FirstText(root, supplierNamePaths...),
		TaxID:            FirstText(root, taxIDPaths...),

		Payable:       amountOf(FindPath(root, "LegalMonetaryTotal", "PayableAmount")),
		LineExtension: amountOf(FindPath(root, "LegalMonetaryTotal", "LineExtensionAmount")),
		Allowance:     amountOf(FindPath(root, "LegalMonetaryTotal", "AllowanceTotalAmount")),
	}

	// Document-level TaxTotal only; line and subtotal TaxAmounts are ignored
	taxTotal := ChildByName(root, "TaxTotal")
	if taxTotal == nil {
		taxTotal = DescendantByName(root, "TaxTotal")
	}
	f.Tax = amountOf(ChildByName(taxTotal, "TaxAmount"))

	return f
}
