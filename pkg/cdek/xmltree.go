package cdek

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"golang.org/x/net/html/charset"
)

// Attr is an XML attribute.
type Attr struct {
	Name  string
	Value string
}

// A is shorthand for an attribute.
func A(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// OptionalAttrs keeps only the attributes with a non-empty value.
func OptionalAttrs(attrs ...Attr) []Attr {
	out := make([]Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Value != "" {
			out = append(out, a)
		}
	}
	return out
}

// Element is an immutable XML element description. Build the whole tree
// with E and serialize it once with Marshal.
type Element struct {
	name     string
	attrs    []Attr
	children []Element
}

// E builds an element. attrs and children are copied.
func E(name string, attrs []Attr, children ...Element) Element {
	return Element{
		name:     name,
		attrs:    append([]Attr(nil), attrs...),
		children: append([]Element(nil), children...),
	}
}

// Name returns the element tag.
func (e Element) Name() string {
	return e.name
}

// Attr returns the value of the named attribute.
func (e Element) Attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Children returns a copy of the child elements.
func (e Element) Children() []Element {
	return append([]Element(nil), e.children...)
}

// Marshal serializes the tree as a UTF-8 XML document.
func (e Element) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	enc := xml.NewEncoder(&buf)
	if err := e.encode(enc); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", e.name, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing xml: %w", err)
	}
	return buf.Bytes(), nil
}

func (e Element) encode(enc *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: e.name}}
	for _, a := range e.attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range e.children {
		if err := child.encode(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// ParseElement parses an XML document into an element tree. Non-UTF-8
// declared encodings are transcoded. Character data is discarded; the
// carrier's documents carry everything in attributes.
func ParseElement(data []byte) (Element, error) {
	var n xmlNode
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&n); err != nil {
		return Element{}, err
	}
	return n.element(), nil
}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
}

func (n xmlNode) element() Element {
	el := Element{name: n.XMLName.Local}
	for _, a := range n.Attrs {
		el.attrs = append(el.attrs, Attr{Name: a.Name.Local, Value: a.Value})
	}
	for _, c := range n.Children {
		el.children = append(el.children, c.element())
	}
	return el
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
