// Package signature reads the XMLDSig block DIAN documents carry. It reports
// who signed a document and when; it does not verify the signature value or
// the certificate chain.
package signature

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	xmlparser "github.com/rezonia/factura-importer/internal/parser/xml"
)

// ErrNoSignature is returned when the document has no Signature element
var ErrNoSignature = errors.New("no Signature element found in document")

// Signer contains the signing certificate subject and the declared signing time
type Signer struct {
	Name         string     `json:"name"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number"`
	Issuer       string     `json:"issuer"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      time.Time  `json:"valid_to"`
	SignedAt     *time.Time `json:"signed_at,omitempty"`
}

// Expired reports whether the certificate had expired at t
func (s *Signer) Expired(t time.Time) bool {
	return s != nil && !s.ValidTo.IsZero() && t.After(s.ValidTo)
}

var signingTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Read parses data and returns the signer of its first Signature element.
// For an AttachedDocument that is the wrapper signature, which DIAN adds on
// validation.
func Read(data []byte) (*Signer, error) {
	doc := xmlparser.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}
	sig := findLocal(root, "Signature")
	if sig == nil {
		return nil, ErrNoSignature
	}
	return FromElement(sig)
}

// FromElement reads a Signature element
func FromElement(sig *etree.Element) (*Signer, error) {
	certElem := findLocal(sig, "X509Certificate")
	if certElem == nil || strings.TrimSpace(certElem.Text()) == "" {
		return nil, errors.New("no X509Certificate found in Signature")
	}

	der, err := base64.StdEncoding.DecodeString(compact(certElem.Text()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	s := fromCertificate(cert)
	if el := findLocal(sig, "SigningTime"); el != nil {
		s.SignedAt = parseSigningTime(el.Text())
	}
	return s, nil
}

func fromCertificate(cert *x509.Certificate) *Signer {
	s := &Signer{
		Name:         cert.Subject.CommonName,
		SerialNumber: cert.SerialNumber.String(),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if len(cert.Subject.Organization) > 0 {
		s.Organization = cert.Subject.Organization[0]
	}
	if cert.Issuer.CommonName != "" {
		s.Issuer = cert.Issuer.CommonName
	} else if len(cert.Issuer.Organization) > 0 {
		s.Issuer = cert.Issuer.Organization[0]
	}
	return s
}

func parseSigningTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range signingTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// compact drops the line breaks signers wrap base64 certificates with
func compact(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

// findLocal searches depth-first for an element by local name, ignoring
// namespace prefixes. elem itself is included.
func findLocal(elem *etree.Element, local string) *etree.Element {
	if elem.Tag == local {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := findLocal(child, local); found != nil {
			return found
		}
	}
	return nil
}
