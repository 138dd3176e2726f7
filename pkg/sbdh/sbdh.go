package sbdh

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// Namespace constants
const (
	// NsSBDH is the UN/CEFACT Standard Business Document Header namespace
	NsSBDH = "http://www.unece.org/cefact/namespaces/StandardBusinessDocumentHeader"

	// HeaderVersion is the only header version in use
	HeaderVersion = "1.0"

	// ScopeDocumentID is the BusinessScope type carrying the document type identifier
	ScopeDocumentID = "DOCUMENTID"
	// ScopeProcessID is the BusinessScope type carrying the process identifier
	ScopeProcessID = "PROCESSID"
)

var (
	// ErrInvalidDocument is returned when bytes are not a structurally valid SBD
	ErrInvalidDocument = errors.New("not a valid Standard Business Document")
)

const (
	rootElement   = "StandardBusinessDocument"
	headerElement = "StandardBusinessDocumentHeader"
)

// Document is a parsed Standard Business Document: the header plus the
// business message that follows it.
type Document struct {
	Header Header

	// business is the first element after the header, detached from the
	// source tree
	business *etree.Element

	// raw holds the bytes the document was parsed from; nil for documents
	// built in code
	raw []byte
}

// Header is the StandardBusinessDocumentHeader
type Header struct {
	XMLName                xml.Name               `xml:"StandardBusinessDocumentHeader"`
	HeaderVersion          string                 `xml:"HeaderVersion"`
	Sender                 []Partner              `xml:"Sender"`
	Receiver               []Partner              `xml:"Receiver"`
	DocumentIdentification DocumentIdentification `xml:"DocumentIdentification"`
	BusinessScope          *BusinessScope         `xml:"BusinessScope,omitempty"`
}

// Partner identifies a sender or receiver
type Partner struct {
	Identifier PartnerIdentifier `xml:"Identifier"`
}

// PartnerIdentifier is a partner identifier qualified by its authority (scheme)
type PartnerIdentifier struct {
	Authority string `xml:"Authority,attr,omitempty"`
	Value     string `xml:",chardata"`
}

// DocumentIdentification describes the business message
type DocumentIdentification struct {
	Standard            string `xml:"Standard"`
	TypeVersion         string `xml:"TypeVersion"`
	InstanceIdentifier  string `xml:"InstanceIdentifier"`
	Type                string `xml:"Type"`
	MultipleType        string `xml:"MultipleType,omitempty"`
	CreationDateAndTime string `xml:"CreationDateAndTime"`
}

// BusinessScope holds the scope list
type BusinessScope struct {
	Scope []Scope `xml:"Scope"`
}

// Scope represents one business scope element
type Scope struct {
	Type               string `xml:"Type"`
	InstanceIdentifier string `xml:"InstanceIdentifier"`
	Identifier         string `xml:"Identifier,omitempty"`
}

// Parse parses raw bytes into a Document. The root element must be a
// StandardBusinessDocument containing a StandardBusinessDocumentHeader.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}

	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	root := tree.Root()
	if root == nil || root.Tag != rootElement {
		return nil, fmt.Errorf("%w: root element is not %s", ErrInvalidDocument, rootElement)
	}

	var headerElem, business *etree.Element
	for _, child := range root.ChildElements() {
		if child.Tag == headerElement && headerElem == nil {
			headerElem = child
			continue
		}
		if headerElem != nil && business == nil {
			business = child
		}
	}
	if headerElem == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDocument, headerElement)
	}

	var header Header
	if err := xml.Unmarshal(data, &struct {
		XMLName xml.Name `xml:"StandardBusinessDocument"`
		Header  *Header  `xml:"StandardBusinessDocumentHeader"`
	}{Header: &header}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := &Document{Header: header, raw: bytes.Clone(data)}
	if business != nil {
		doc.business = business.Copy()
	}
	return doc, nil
}

// BusinessMessage returns the business payload element, or nil if the
// document carries none. The returned element is a copy.
func (d *Document) BusinessMessage() *etree.Element {
	if d.business == nil {
		return nil
	}
	return d.business.Copy()
}

// BusinessMessageBytes serializes the business payload element.
func (d *Document) BusinessMessageBytes() ([]byte, error) {
	if d.business == nil {
		return nil, nil
	}
	out := etree.NewDocument()
	out.SetRoot(d.business.Copy())
	return out.WriteToBytes()
}

// Raw returns a copy of the bytes the document was parsed from, or nil when
// the document was built in code.
func (d *Document) Raw() []byte {
	return bytes.Clone(d.raw)
}

// InstanceIdentifier returns the SBDH instance identifier
func (d *Document) InstanceIdentifier() string {
	return d.Header.DocumentIdentification.InstanceIdentifier
}

// CreationDateAndTime returns the parsed creation timestamp, or the zero
// time when absent or malformed.
func (d *Document) CreationDateAndTime() time.Time {
	t, err := time.Parse(time.RFC3339, d.Header.DocumentIdentification.CreationDateAndTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ScopeByType returns the first business scope of the given type
func (d *Document) ScopeByType(scopeType string) *Scope {
	if d.Header.BusinessScope == nil {
		return nil
	}
	for i := range d.Header.BusinessScope.Scope {
		if d.Header.BusinessScope.Scope[i].Type == scopeType {
			return &d.Header.BusinessScope.Scope[i]
		}
	}
	return nil
}

// Marshal serializes the document to XML bytes
func (d *Document) Marshal() ([]byte, error) {
	header := d.Header
	header.XMLName = xml.Name{Local: headerElement}
	headerBytes, err := xml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	headerTree := etree.NewDocument()
	if err := headerTree.ReadFromBytes(headerBytes); err != nil {
		return nil, fmt.Errorf("re-reading header: %w", err)
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := out.CreateElement(rootElement)
	root.CreateAttr("xmlns", NsSBDH)
	root.AddChild(headerTree.Root())
	if d.business != nil {
		root.AddChild(d.business.Copy())
	}

	return out.WriteToBytes()
}
